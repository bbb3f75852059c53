package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
)

const (
	gitAddSubcommandNameConstant    = "add"
	gitStatusSubcommandNameConstant = "status"
	gitCommitSubcommandNameConstant = "commit"
	gitPushSubcommandNameConstant   = "push"
	gitMessageFlagConstant          = "-m"
	gitPorcelainFlagConstant        = "--porcelain"
	gpgDetachSignFlagConstant       = "--detach-sign"
	gpgVerifyFlagConstant           = "--verify"
	gpgOutputFlagConstant           = "--output"
	gpgDefaultKeyFlagConstant       = "--default-key"
)

const (
	gitAddStartTemplateConstant               = "Staging %s in %s"
	gitAddSuccessTemplateConstant             = "Staged %s in %s"
	gitAddFailureTemplateConstant             = "Failed to stage %s in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant    = "Unable to stage %s in %s: %s"
	gitStatusStartTemplateConstant            = "Reviewing working tree status in %s"
	gitStatusSuccessTemplateConstant          = "Collected working tree status for %s"
	gitStatusFailureTemplateConstant          = "Failed to review working tree status in %s (exit code %d%s)"
	gitStatusExecutionFailureTemplateConstant = "Unable to review working tree status in %s: %s"
	gitCommitStartTemplateConstant            = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant          = "Created commit in %s with message %q"
	gitCommitFailureTemplateConstant          = "Failed to create commit in %s with message %q (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant = "Unable to create commit in %s with message %q: %s"
	gitPushStartTemplateConstant              = "Pushing from %s"
	gitPushSuccessTemplateConstant            = "Pushed from %s"
	gitPushFailureTemplateConstant            = "Failed to push from %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant   = "Unable to push from %s: %s"
)

const (
	gpgSignStartTemplateConstant              = "Signing %s"
	gpgSignWithKeyStartTemplateConstant       = "Signing %s with key %s"
	gpgSignSuccessTemplateConstant            = "Signed %s"
	gpgSignFailureTemplateConstant            = "Failed to sign %s (exit code %d%s)"
	gpgSignExecutionFailureTemplateConstant   = "Unable to sign %s: %s"
	gpgVerifyStartTemplateConstant            = "Verifying signature %s"
	gpgVerifySuccessTemplateConstant          = "Verified signature %s"
	gpgVerifyFailureTemplateConstant          = "Signature verification for %s reported exit code %d%s"
	gpgVerifyExecutionFailureTemplateConstant = "Unable to verify signature %s: %s"
	fallbackUnknownValueLabelConstant         = "unknown"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandGPG:
		return formatter.describeGPGMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	subcommand := strings.TrimSpace(arguments[0])

	switch subcommand {
	case gitAddSubcommandNameConstant:
		stagedPaths := formatter.joinNonFlagArguments(arguments[1:])
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitAddStartTemplateConstant, stagedPaths, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitAddSuccessTemplateConstant, stagedPaths, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitAddFailureTemplateConstant, stagedPaths, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitAddExecutionFailureTemplateConstant, stagedPaths, workingDirectory, formatter.describeFailure(failure))
		}
	case gitStatusSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitStatusStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitStatusSuccessTemplateConstant, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitStatusFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitStatusExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
		}
	case gitCommitSubcommandNameConstant:
		commitMessage := formatter.extractFlagValue(arguments, gitMessageFlagConstant)
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCommitStartTemplateConstant, workingDirectory, commitMessage)
		case messageStageSuccess:
			return fmt.Sprintf(gitCommitSuccessTemplateConstant, workingDirectory, commitMessage)
		case messageStageFailure:
			return fmt.Sprintf(gitCommitFailureTemplateConstant, workingDirectory, commitMessage, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitCommitExecutionFailureTemplateConstant, workingDirectory, commitMessage, formatter.describeFailure(failure))
		}
	case gitPushSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitPushStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitPushSuccessTemplateConstant, workingDirectory)
		case messageStageFailure:
			return fmt.Sprintf(gitPushFailureTemplateConstant, workingDirectory, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gitPushExecutionFailureTemplateConstant, workingDirectory, formatter.describeFailure(failure))
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeGPGMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments

	if containsArgument(arguments, gpgDetachSignFlagConstant) {
		signedPath := formatter.lastNonFlagArgument(arguments)
		keyIdentifier := formatter.extractFlagValue(arguments, gpgDefaultKeyFlagConstant)
		switch stage {
		case messageStageStart:
			if keyIdentifier != fallbackUnknownValueLabelConstant {
				return fmt.Sprintf(gpgSignWithKeyStartTemplateConstant, signedPath, keyIdentifier)
			}
			return fmt.Sprintf(gpgSignStartTemplateConstant, signedPath)
		case messageStageSuccess:
			return fmt.Sprintf(gpgSignSuccessTemplateConstant, signedPath)
		case messageStageFailure:
			return fmt.Sprintf(gpgSignFailureTemplateConstant, signedPath, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gpgSignExecutionFailureTemplateConstant, signedPath, formatter.describeFailure(failure))
		}
	}

	if containsArgument(arguments, gpgVerifyFlagConstant) {
		signaturePath := formatter.firstArgumentAfter(arguments, gpgVerifyFlagConstant)
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gpgVerifyStartTemplateConstant, signaturePath)
		case messageStageSuccess:
			return fmt.Sprintf(gpgVerifySuccessTemplateConstant, signaturePath)
		case messageStageFailure:
			return fmt.Sprintf(gpgVerifyFailureTemplateConstant, signaturePath, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		case messageStageExecutionFailure:
			return fmt.Sprintf(gpgVerifyExecutionFailureTemplateConstant, signaturePath, formatter.describeFailure(failure))
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.describeCommandLabel(command)

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return commandLabel
	}
}

func (formatter CommandMessageFormatter) describeCommandLabel(command ShellCommand) string {
	argumentSuffix := emptyStringConstant
	if len(command.Details.Arguments) > 0 {
		argumentSuffix = commandArgumentsJoinSeparatorConstant + strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant)
	}
	label := fmt.Sprintf(commandLabelTemplateConstant, string(command.Name), argumentSuffix)
	if len(command.Details.WorkingDirectory) > 0 {
		label += fmt.Sprintf(workingDirectorySuffixTemplateConstant, command.Details.WorkingDirectory)
	}
	return label
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmed := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmed) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmed
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmed := strings.TrimSpace(standardError)
	if len(trimmed) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmed)
}

func (formatter CommandMessageFormatter) joinNonFlagArguments(arguments []string) string {
	collected := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, "-") {
			continue
		}
		collected = append(collected, trimmed)
	}
	if len(collected) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return strings.Join(collected, ", ")
}

func (formatter CommandMessageFormatter) lastNonFlagArgument(arguments []string) string {
	for index := len(arguments) - 1; index >= 0; index-- {
		trimmed := strings.TrimSpace(arguments[index])
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, "-") {
			continue
		}
		if index > 0 && formatter.isFlagExpectingValue(arguments[index-1]) {
			continue
		}
		return trimmed
	}
	return fallbackUnknownValueLabelConstant
}

func (formatter CommandMessageFormatter) firstArgumentAfter(arguments []string, flag string) string {
	for index := 0; index < len(arguments)-1; index++ {
		if strings.TrimSpace(arguments[index]) == flag {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return fallbackUnknownValueLabelConstant
}

func (formatter CommandMessageFormatter) extractFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments)-1; index++ {
		if strings.TrimSpace(arguments[index]) == flag {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return fallbackUnknownValueLabelConstant
}

func (formatter CommandMessageFormatter) isFlagExpectingValue(argument string) bool {
	trimmed := strings.TrimSpace(argument)
	return trimmed == gpgOutputFlagConstant || trimmed == gpgDefaultKeyFlagConstant || trimmed == gitMessageFlagConstant
}

func containsArgument(arguments []string, candidate string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == candidate {
			return true
		}
	}
	return false
}
