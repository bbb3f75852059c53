package signature

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitseal/gitseal/internal/execshell"
)

const (
	cliSignerBackendNameConstant   = "gpg"
	gpgBatchFlagConstant           = "--batch"
	gpgYesFlagConstant             = "--yes"
	gpgArmorFlagConstant           = "--armor"
	gpgDefaultKeyFlagConstant      = "--default-key"
	gpgOutputFlagConstant          = "--output"
	gpgDetachSignFlagConstant      = "--detach-sign"
	gpgVerifyFlagConstant          = "--verify"
	gpgGoodSignatureMarkerConstant = "Good signature"
)

// GPGExecutor captures the subset of execshell used by the CLI signer.
type GPGExecutor interface {
	ExecuteGPG(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// CLISigner shells out to the gpg binary for signing and verification.
type CLISigner struct {
	executor GPGExecutor
}

// NewCLISigner constructs a CLISigner backed by the provided executor.
func NewCLISigner(executor GPGExecutor) *CLISigner {
	return &CLISigner{executor: executor}
}

// Sign produces a detached armored signature next to the manifest and returns its path.
func (signer *CLISigner) Sign(executionContext context.Context, manifestPath string, trust TrustContext) (string, error) {
	if _, statError := os.Stat(manifestPath); statError != nil {
		return "", ErrManifestMissing
	}

	signaturePath := SignaturePathFor(manifestPath)

	signArguments := []string{gpgBatchFlagConstant, gpgYesFlagConstant}
	if len(trust.KeyIdentifier) > 0 {
		signArguments = append(signArguments, gpgDefaultKeyFlagConstant, trust.KeyIdentifier)
	}
	signArguments = append(signArguments,
		gpgArmorFlagConstant,
		gpgOutputFlagConstant, signaturePath,
		gpgDetachSignFlagConstant, manifestPath,
	)

	commandDetails := execshell.CommandDetails{
		Arguments:        signArguments,
		WorkingDirectory: filepath.Dir(manifestPath),
	}

	if _, executionError := signer.executor.ExecuteGPG(executionContext, commandDetails); executionError != nil {
		return "", &ToolFailureError{Backend: cliSignerBackendNameConstant, Cause: executionError}
	}

	return signaturePath, nil
}

// Verify checks the detached signature against the manifest. A rejected signature
// yields a false Outcome rather than an error; only tooling breakage is an error.
func (signer *CLISigner) Verify(executionContext context.Context, manifestPath string, signaturePath string, trust TrustContext) (Outcome, error) {
	if _, statError := os.Stat(manifestPath); statError != nil {
		return Outcome{}, ErrSignatureArtifactsMissing
	}
	if _, statError := os.Stat(signaturePath); statError != nil {
		return Outcome{}, ErrSignatureArtifactsMissing
	}

	commandDetails := execshell.CommandDetails{
		Arguments:        []string{gpgBatchFlagConstant, gpgVerifyFlagConstant, signaturePath, manifestPath},
		WorkingDirectory: filepath.Dir(manifestPath),
	}

	executionResult, executionError := signer.executor.ExecuteGPG(executionContext, commandDetails)
	if executionError != nil {
		var commandFailure execshell.CommandFailedError
		if errors.As(executionError, &commandFailure) {
			return Outcome{Valid: false, Diagnostic: commandFailure.Result.CombinedOutput()}, nil
		}
		return Outcome{}, &ToolFailureError{Backend: cliSignerBackendNameConstant, Cause: executionError}
	}

	if !strings.Contains(executionResult.CombinedOutput(), gpgGoodSignatureMarkerConstant) {
		return Outcome{Valid: false, Diagnostic: executionResult.CombinedOutput()}, nil
	}

	return Outcome{Valid: true, Diagnostic: executionResult.CombinedOutput()}, nil
}
