package execshell

// CommandEventObserver receives lifecycle notifications for the git and gpg
// invocations driving the manifest pipeline.
type CommandEventObserver interface {
	// CommandStarted fires before the git or gpg process is spawned.
	CommandStarted(command ShellCommand)
	// CommandCompleted fires once the process exits and supplies its captured result.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports failures that prevented the process from producing a result.
	CommandExecutionFailed(command ShellCommand, failure error)
}

// noopCommandEventObserver discards all lifecycle notifications.
type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}
