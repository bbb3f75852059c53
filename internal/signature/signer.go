package signature

import (
	"context"
	"errors"
	"fmt"
)

const (
	armoredSignatureSuffixConstant           = ".asc"
	manifestMissingMessageConstant           = "manifest file not found"
	signatureArtifactsMissingMessageConstant = "manifest or signature file not found"
	toolFailureTemplateConstant              = "%s tooling failed: %v"
)

// Sentinel errors reported by signer implementations.
var (
	ErrManifestMissing           = errors.New(manifestMissingMessageConstant)
	ErrSignatureArtifactsMissing = errors.New(signatureArtifactsMissingMessageConstant)
)

// ToolFailureError reports that the signing backend itself could not run.
type ToolFailureError struct {
	Backend string
	Cause   error
}

// Error describes the backend failure.
func (toolFailure *ToolFailureError) Error() string {
	return fmt.Sprintf(toolFailureTemplateConstant, toolFailure.Backend, toolFailure.Cause)
}

// Unwrap exposes the underlying cause.
func (toolFailure *ToolFailureError) Unwrap() error {
	return toolFailure.Cause
}

// TrustContext carries the key material selection for signing and verification.
type TrustContext struct {
	KeyIdentifier string
}

// Outcome reports the result of a signature verification.
type Outcome struct {
	Valid      bool
	Diagnostic string
}

// Signer produces and checks detached armored signatures over manifest files.
type Signer interface {
	Sign(executionContext context.Context, manifestPath string, trust TrustContext) (string, error)
	Verify(executionContext context.Context, manifestPath string, signaturePath string, trust TrustContext) (Outcome, error)
}

// SignaturePathFor derives the detached signature path for a manifest path.
func SignaturePathFor(manifestPath string) string {
	return manifestPath + armoredSignatureSuffixConstant
}
