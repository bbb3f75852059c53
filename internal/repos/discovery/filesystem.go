// Package discovery locates git repositories beneath configured root directories.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	gitMetadataDirectoryNameConstant = ".git"
	rootReadErrorTemplateConstant    = "failed to read root %s: %w"
)

// FilesystemRepositoryDiscoverer finds git repositories among the immediate
// children of each configured root. A root that is itself a repository is
// reported directly.
type FilesystemRepositoryDiscoverer struct{}

// NewFilesystemRepositoryDiscoverer constructs a FilesystemRepositoryDiscoverer.
func NewFilesystemRepositoryDiscoverer() *FilesystemRepositoryDiscoverer {
	return &FilesystemRepositoryDiscoverer{}
}

// DiscoverRepositories returns the sorted, deduplicated absolute paths of
// repositories found under the provided roots.
func (discoverer *FilesystemRepositoryDiscoverer) DiscoverRepositories(rootPaths []string) ([]string, error) {
	discoveredPaths := map[string]struct{}{}

	for _, rootPath := range rootPaths {
		absoluteRootPath, absoluteError := filepath.Abs(rootPath)
		if absoluteError != nil {
			return nil, fmt.Errorf(rootReadErrorTemplateConstant, rootPath, absoluteError)
		}

		if containsGitMetadata(absoluteRootPath) {
			discoveredPaths[absoluteRootPath] = struct{}{}
			continue
		}

		directoryEntries, readError := os.ReadDir(absoluteRootPath)
		if readError != nil {
			return nil, fmt.Errorf(rootReadErrorTemplateConstant, absoluteRootPath, readError)
		}

		for _, directoryEntry := range directoryEntries {
			if !directoryEntry.IsDir() {
				continue
			}
			candidatePath := filepath.Join(absoluteRootPath, directoryEntry.Name())
			if containsGitMetadata(candidatePath) {
				discoveredPaths[candidatePath] = struct{}{}
			}
		}
	}

	repositoryPaths := make([]string, 0, len(discoveredPaths))
	for repositoryPath := range discoveredPaths {
		repositoryPaths = append(repositoryPaths, repositoryPath)
	}
	sort.Strings(repositoryPaths)
	return repositoryPaths, nil
}

// A .git entry may be a directory or, for worktrees and submodules, a file.
func containsGitMetadata(candidatePath string) bool {
	_, statError := os.Stat(filepath.Join(candidatePath, gitMetadataDirectoryNameConstant))
	return statError == nil
}
