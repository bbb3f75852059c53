package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

const (
	gitMetadataDirectoryNameConstant       = ".git"
	rootNotFoundErrorTemplateConstant      = "repository root %s does not exist"
	rootNotDirectoryErrorTemplateConstant  = "repository root %s is not a directory"
	rootPermissionErrorTemplateConstant    = "repository root %s is not readable: %v"
	enumerationFailedErrorTemplateConstant = "failed to enumerate %s: %w"
)

// ErrRootNotFound reports that the requested repository root does not exist.
var ErrRootNotFound = errors.New("repository root not found")

// ErrRootNotDirectory reports that the requested repository root is not a directory.
var ErrRootNotDirectory = errors.New("repository root is not a directory")

// RootError wraps a root-level enumeration failure with its classification.
type RootError struct {
	RootPath string
	Cause    error
}

// Error describes the root failure.
func (rootError *RootError) Error() string {
	if errors.Is(rootError.Cause, ErrRootNotFound) {
		return fmt.Sprintf(rootNotFoundErrorTemplateConstant, rootError.RootPath)
	}
	if errors.Is(rootError.Cause, ErrRootNotDirectory) {
		return fmt.Sprintf(rootNotDirectoryErrorTemplateConstant, rootError.RootPath)
	}
	return fmt.Sprintf(rootPermissionErrorTemplateConstant, rootError.RootPath, rootError.Cause)
}

// Unwrap exposes the underlying classification error.
func (rootError *RootError) Unwrap() error {
	return rootError.Cause
}

// FileEnumerator walks repository trees and reports the relative paths eligible for checksumming.
type FileEnumerator struct{}

// NewFileEnumerator constructs a FileEnumerator instance.
func NewFileEnumerator() *FileEnumerator {
	return &FileEnumerator{}
}

// EnumerateFiles returns the sorted slash-form relative paths of regular files under rootPath.
// Git metadata and previously produced manifest artifacts are excluded, and symbolic links
// are never followed.
func (enumerator *FileEnumerator) EnumerateFiles(rootPath string) ([]string, error) {
	rootInformation, statError := os.Stat(rootPath)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return nil, &RootError{RootPath: rootPath, Cause: ErrRootNotFound}
		}
		return nil, &RootError{RootPath: rootPath, Cause: statError}
	}
	if !rootInformation.IsDir() {
		return nil, &RootError{RootPath: rootPath, Cause: ErrRootNotDirectory}
	}

	var relativePaths []string
	walkError := filepath.WalkDir(rootPath, func(currentPath string, directoryEntry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}

		if directoryEntry.IsDir() {
			if directoryEntry.Name() == gitMetadataDirectoryNameConstant {
				return filepath.SkipDir
			}
			return nil
		}

		if !directoryEntry.Type().IsRegular() {
			return nil
		}

		relativePath, relativeError := filepath.Rel(rootPath, currentPath)
		if relativeError != nil {
			return relativeError
		}
		slashRelativePath := filepath.ToSlash(relativePath)

		if isManifestArtifact(slashRelativePath) {
			return nil
		}

		relativePaths = append(relativePaths, slashRelativePath)
		return nil
	})
	if walkError != nil {
		return nil, fmt.Errorf(enumerationFailedErrorTemplateConstant, rootPath, walkError)
	}

	sort.Strings(relativePaths)
	return relativePaths, nil
}

// isManifestArtifact reports whether the path names one of the two artifacts
// this tool writes at the repository root. Files with the same names deeper in
// the tree are ordinary content and stay in the manifest.
func isManifestArtifact(slashRelativePath string) bool {
	return slashRelativePath == ManifestFileName || slashRelativePath == SignatureFileName
}
