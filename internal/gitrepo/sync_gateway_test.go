package gitrepo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitseal/gitseal/internal/execshell"
	"github.com/gitseal/gitseal/internal/gitrepo"
)

const (
	gatewayRepositoryPathConstant = "/tmp/repository"
	gatewayCommitMessageConstant  = "Record integrity artifacts"
	gatewayDirtyStatusOutput      = " M hashes.md5\n?? hashes.md5.asc\n"
)

type recordedGitInvocation struct {
	arguments        []string
	workingDirectory string
}

type scriptedGitExecutor struct {
	invocations    []recordedGitInvocation
	statusOutput   string
	failingCommand string
	failure        error
}

func (executor *scriptedGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.invocations = append(executor.invocations, recordedGitInvocation{
		arguments:        details.Arguments,
		workingDirectory: details.WorkingDirectory,
	})

	subcommand := details.Arguments[0]
	if subcommand == executor.failingCommand {
		return execshell.ExecutionResult{}, executor.failure
	}
	if subcommand == "status" {
		return execshell.ExecutionResult{StandardOutput: executor.statusOutput}, nil
	}
	return execshell.ExecutionResult{}, nil
}

func (executor *scriptedGitExecutor) subcommands() []string {
	var subcommands []string
	for _, invocation := range executor.invocations {
		subcommands = append(subcommands, invocation.arguments[0])
	}
	return subcommands
}

func TestSyncGatewayPublishCommitsAndPushes(testInstance *testing.T) {
	executor := &scriptedGitExecutor{statusOutput: gatewayDirtyStatusOutput}
	gateway := gitrepo.NewSyncGateway(executor)

	changed, publishError := gateway.PublishManifestArtifacts(context.Background(), gatewayRepositoryPathConstant, gatewayCommitMessageConstant, true)
	require.NoError(testInstance, publishError)
	require.True(testInstance, changed)
	require.Equal(testInstance, []string{"add", "status", "commit", "push"}, executor.subcommands())

	for _, invocation := range executor.invocations {
		require.Equal(testInstance, gatewayRepositoryPathConstant, invocation.workingDirectory)
	}

	commitInvocation := executor.invocations[2]
	require.Equal(testInstance, []string{"commit", "-m", gatewayCommitMessageConstant}, commitInvocation.arguments)
}

func TestSyncGatewayPublishSkipsPushWhenDisabled(testInstance *testing.T) {
	executor := &scriptedGitExecutor{statusOutput: gatewayDirtyStatusOutput}
	gateway := gitrepo.NewSyncGateway(executor)

	changed, publishError := gateway.PublishManifestArtifacts(context.Background(), gatewayRepositoryPathConstant, gatewayCommitMessageConstant, false)
	require.NoError(testInstance, publishError)
	require.True(testInstance, changed)
	require.Equal(testInstance, []string{"add", "status", "commit"}, executor.subcommands())
}

func TestSyncGatewayPublishNoopWhenArtifactsUnchanged(testInstance *testing.T) {
	executor := &scriptedGitExecutor{statusOutput: ""}
	gateway := gitrepo.NewSyncGateway(executor)

	changed, publishError := gateway.PublishManifestArtifacts(context.Background(), gatewayRepositoryPathConstant, "", true)
	require.NoError(testInstance, publishError)
	require.False(testInstance, changed)
	require.Equal(testInstance, []string{"add", "status"}, executor.subcommands())
}

func TestSyncGatewayPublishDefaultsCommitMessage(testInstance *testing.T) {
	executor := &scriptedGitExecutor{statusOutput: gatewayDirtyStatusOutput}
	gateway := gitrepo.NewSyncGateway(executor)

	_, publishError := gateway.PublishManifestArtifacts(context.Background(), gatewayRepositoryPathConstant, "", false)
	require.NoError(testInstance, publishError)

	commitInvocation := executor.invocations[2]
	require.Equal(testInstance, []string{"commit", "-m", gitrepo.DefaultCommitMessage()}, commitInvocation.arguments)
}

func TestSyncGatewayPublishClassifiesStageFailures(testInstance *testing.T) {
	testCases := []struct {
		name           string
		failingCommand string
		expectedStage  gitrepo.SyncStage
		expectChanged  bool
	}{
		{name: "stage_failure", failingCommand: "add", expectedStage: gitrepo.SyncStageStage},
		{name: "status_failure", failingCommand: "status", expectedStage: gitrepo.SyncStageStatus},
		{name: "commit_failure", failingCommand: "commit", expectedStage: gitrepo.SyncStageCommit},
		{name: "push_failure", failingCommand: "push", expectedStage: gitrepo.SyncStagePush, expectChanged: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{
				statusOutput:   gatewayDirtyStatusOutput,
				failingCommand: testCase.failingCommand,
				failure:        execshell.CommandFailedError{Result: execshell.ExecutionResult{ExitCode: 1}},
			}
			gateway := gitrepo.NewSyncGateway(executor)

			changed, publishError := gateway.PublishManifestArtifacts(context.Background(), gatewayRepositoryPathConstant, gatewayCommitMessageConstant, true)
			require.Error(testInstance, publishError)
			require.Equal(testInstance, testCase.expectChanged, changed)

			var syncError *gitrepo.SyncError
			require.True(testInstance, errors.As(publishError, &syncError))
			require.Equal(testInstance, testCase.expectedStage, syncError.Stage)
		})
	}
}
