package manifest

import (
	"crypto/md5" //nolint:gosec // md5sum-compatible manifests are the interchange format.
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	buildErrorTemplateConstant          = "failed to hash %s: %v"
	temporaryManifestPatternConstant    = ".hashes.md5.tmp-*"
	manifestFilePermissionsConstant     = 0o644
	temporaryWriteErrorTemplateConstant = "failed to stage manifest in %s: %w"
	manifestRenameErrorTemplateConstant = "failed to publish manifest %s: %w"
	manifestDigestCopyTemplateConstant  = "failed to read %s: %w"
	manifestDigestOpenTemplateConstant  = "failed to open %s: %w"
	manifestSerializeWriteErrorTemplate = "failed to write staged manifest %s: %w"
	manifestTemporaryCloseErrorTemplate = "failed to finalize staged manifest %s: %w"
	manifestEnumerationAbortedConstant  = "manifest build aborted for %s: %w"
)

// BuildError reports the first file that could not be hashed during a manifest build.
type BuildError struct {
	Path  string
	Cause error
}

// Error describes the failed file.
func (buildError *BuildError) Error() string {
	return fmt.Sprintf(buildErrorTemplateConstant, buildError.Path, buildError.Cause)
}

// Unwrap exposes the underlying failure.
func (buildError *BuildError) Unwrap() error {
	return buildError.Cause
}

// Builder computes checksum manifests for repository trees.
type Builder struct {
	enumerator *FileEnumerator
}

// NewBuilder constructs a Builder backed by the provided enumerator.
func NewBuilder(enumerator *FileEnumerator) *Builder {
	if enumerator == nil {
		enumerator = NewFileEnumerator()
	}
	return &Builder{enumerator: enumerator}
}

// Build enumerates rootPath and computes one manifest entry per eligible file.
// The build is all-or-nothing: any unreadable file aborts with a BuildError.
func (builder *Builder) Build(rootPath string) (Manifest, error) {
	relativePaths, enumerationError := builder.enumerator.EnumerateFiles(rootPath)
	if enumerationError != nil {
		return Manifest{}, fmt.Errorf(manifestEnumerationAbortedConstant, rootPath, enumerationError)
	}

	builtManifest := Manifest{Entries: make([]Entry, 0, len(relativePaths))}
	for _, relativePath := range relativePaths {
		absolutePath := filepath.Join(rootPath, filepath.FromSlash(relativePath))
		digest, digestError := DigestFile(absolutePath)
		if digestError != nil {
			return Manifest{}, &BuildError{Path: relativePath, Cause: digestError}
		}
		builtManifest.Entries = append(builtManifest.Entries, Entry{RelativePath: relativePath, Digest: digest})
	}

	return builtManifest, nil
}

// WriteManifest serializes the manifest into rootPath/hashes.md5, staging through a
// temporary file so a failed write never leaves a partial manifest behind.
func (builder *Builder) WriteManifest(rootPath string, builtManifest Manifest) (string, error) {
	manifestPath := filepath.Join(rootPath, ManifestFileName)

	temporaryFile, temporaryError := os.CreateTemp(rootPath, temporaryManifestPatternConstant)
	if temporaryError != nil {
		return "", fmt.Errorf(temporaryWriteErrorTemplateConstant, rootPath, temporaryError)
	}
	temporaryPath := temporaryFile.Name()

	if _, writeError := temporaryFile.Write(builtManifest.Serialize()); writeError != nil {
		_ = temporaryFile.Close()
		_ = os.Remove(temporaryPath)
		return "", fmt.Errorf(manifestSerializeWriteErrorTemplate, manifestPath, writeError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		_ = os.Remove(temporaryPath)
		return "", fmt.Errorf(manifestTemporaryCloseErrorTemplate, manifestPath, closeError)
	}
	if chmodError := os.Chmod(temporaryPath, manifestFilePermissionsConstant); chmodError != nil {
		_ = os.Remove(temporaryPath)
		return "", fmt.Errorf(manifestTemporaryCloseErrorTemplate, manifestPath, chmodError)
	}
	if renameError := os.Rename(temporaryPath, manifestPath); renameError != nil {
		_ = os.Remove(temporaryPath)
		return "", fmt.Errorf(manifestRenameErrorTemplateConstant, manifestPath, renameError)
	}

	return manifestPath, nil
}

// DigestFile streams the file at absolutePath through MD5 and returns the lowercase hex digest.
func DigestFile(absolutePath string) (string, error) {
	fileHandle, openError := os.Open(absolutePath)
	if openError != nil {
		return "", fmt.Errorf(manifestDigestOpenTemplateConstant, absolutePath, openError)
	}
	defer func() { _ = fileHandle.Close() }()

	digestWriter := md5.New() //nolint:gosec // md5sum-compatible manifests are the interchange format.
	if _, copyError := io.Copy(digestWriter, fileHandle); copyError != nil {
		return "", fmt.Errorf(manifestDigestCopyTemplateConstant, absolutePath, copyError)
	}

	return hex.EncodeToString(digestWriter.Sum(nil)), nil
}
