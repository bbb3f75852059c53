package gitrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/gitseal/gitseal/internal/execshell"
	"github.com/gitseal/gitseal/internal/manifest"
)

const (
	gitAddSubcommandConstant     = "add"
	gitStatusSubcommandConstant  = "status"
	gitCommitSubcommandConstant  = "commit"
	gitPushSubcommandConstant    = "push"
	gitPorcelainFlagConstant     = "--porcelain"
	gitPathspecSeparatorConstant = "--"
	gitCommitMessageFlagConstant = "-m"
	syncErrorTemplateConstant    = "git %s failed: %v"
	defaultCommitMessageConstant = "Update file hashes and signature"
)

// SyncStage identifies the pipeline step at which a synchronization failed.
type SyncStage string

// Synchronization stages.
const (
	SyncStageStage  SyncStage = "stage"
	SyncStageStatus SyncStage = "status"
	SyncStageCommit SyncStage = "commit"
	SyncStagePush   SyncStage = "push"
)

// SyncError reports a git operation failure together with the stage that produced it.
type SyncError struct {
	Stage SyncStage
	Cause error
}

// Error describes the failed stage.
func (syncError *SyncError) Error() string {
	return fmt.Sprintf(syncErrorTemplateConstant, string(syncError.Stage), syncError.Cause)
}

// Unwrap exposes the underlying cause.
func (syncError *SyncError) Unwrap() error {
	return syncError.Cause
}

// GitExecutor captures the subset of execshell used by the gateway.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// SyncGateway commits and pushes manifest artifacts through the git binary.
type SyncGateway struct {
	executor GitExecutor
}

// NewSyncGateway constructs a SyncGateway backed by the provided executor.
func NewSyncGateway(executor GitExecutor) *SyncGateway {
	return &SyncGateway{executor: executor}
}

// DefaultCommitMessage returns the commit message used when none is configured.
func DefaultCommitMessage() string {
	return defaultCommitMessageConstant
}

// StageManifestArtifacts stages the manifest and its signature in the repository index.
func (gateway *SyncGateway) StageManifestArtifacts(executionContext context.Context, repositoryPath string) error {
	commandDetails := execshell.CommandDetails{
		Arguments:        []string{gitAddSubcommandConstant, manifest.ManifestFileName, manifest.SignatureFileName},
		WorkingDirectory: repositoryPath,
	}
	if _, executionError := gateway.executor.ExecuteGit(executionContext, commandDetails); executionError != nil {
		return &SyncError{Stage: SyncStageStage, Cause: executionError}
	}
	return nil
}

// HasPendingChanges reports whether the staged manifest artifacts differ from HEAD.
func (gateway *SyncGateway) HasPendingChanges(executionContext context.Context, repositoryPath string) (bool, error) {
	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			gitStatusSubcommandConstant,
			gitPorcelainFlagConstant,
			gitPathspecSeparatorConstant,
			manifest.ManifestFileName,
			manifest.SignatureFileName,
		},
		WorkingDirectory: repositoryPath,
	}
	executionResult, executionError := gateway.executor.ExecuteGit(executionContext, commandDetails)
	if executionError != nil {
		return false, &SyncError{Stage: SyncStageStatus, Cause: executionError}
	}
	return len(strings.TrimSpace(executionResult.StandardOutput)) > 0, nil
}

// Commit records the staged artifacts with the provided message.
func (gateway *SyncGateway) Commit(executionContext context.Context, repositoryPath string, commitMessage string) error {
	commandDetails := execshell.CommandDetails{
		Arguments:        []string{gitCommitSubcommandConstant, gitCommitMessageFlagConstant, commitMessage},
		WorkingDirectory: repositoryPath,
	}
	if _, executionError := gateway.executor.ExecuteGit(executionContext, commandDetails); executionError != nil {
		return &SyncError{Stage: SyncStageCommit, Cause: executionError}
	}
	return nil
}

// Push publishes the current branch to its configured remote.
func (gateway *SyncGateway) Push(executionContext context.Context, repositoryPath string) error {
	commandDetails := execshell.CommandDetails{
		Arguments:        []string{gitPushSubcommandConstant},
		WorkingDirectory: repositoryPath,
	}
	if _, executionError := gateway.executor.ExecuteGit(executionContext, commandDetails); executionError != nil {
		return &SyncError{Stage: SyncStagePush, Cause: executionError}
	}
	return nil
}

// PublishManifestArtifacts stages, commits, and optionally pushes the manifest
// artifacts. When the artifacts match HEAD the publication is a no-op and the
// returned changed flag is false.
func (gateway *SyncGateway) PublishManifestArtifacts(executionContext context.Context, repositoryPath string, commitMessage string, pushEnabled bool) (bool, error) {
	if len(commitMessage) == 0 {
		commitMessage = defaultCommitMessageConstant
	}

	if stageError := gateway.StageManifestArtifacts(executionContext, repositoryPath); stageError != nil {
		return false, stageError
	}

	pendingChanges, statusError := gateway.HasPendingChanges(executionContext, repositoryPath)
	if statusError != nil {
		return false, statusError
	}
	if !pendingChanges {
		return false, nil
	}

	if commitError := gateway.Commit(executionContext, repositoryPath, commitMessage); commitError != nil {
		return false, commitError
	}

	if pushEnabled {
		if pushError := gateway.Push(executionContext, repositoryPath); pushError != nil {
			return true, pushError
		}
	}

	return true, nil
}
