package signature

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const (
	openpgpBackendNameConstant           = "openpgp"
	keyringOpenErrorTemplateConstant     = "failed to open keyring %s: %w"
	keyringParseErrorTemplateConstant    = "failed to parse keyring %s: %w"
	signingKeyMissingTemplateConstant    = "no signing key matching %q in keyring %s"
	untrustedSignerDiagnosticTemplate    = "signature made by untrusted key %s, expected %s"
	rejectedSignatureDiagnosticTemplate  = "signature rejected: %v"
	signatureCreateErrorTemplateConstant = "failed to create signature file %s: %w"
	detachedSignErrorTemplateConstant    = "failed to sign %s: %w"
	anySigningKeySelectorConstant        = ""
)

// OpenPGPSigner signs and verifies manifests with a local armored keyring,
// avoiding any dependency on an installed gpg binary.
type OpenPGPSigner struct {
	keyringPath string
}

// NewOpenPGPSigner constructs an OpenPGPSigner reading keys from keyringPath.
func NewOpenPGPSigner(keyringPath string) *OpenPGPSigner {
	return &OpenPGPSigner{keyringPath: keyringPath}
}

// Sign produces a detached armored signature next to the manifest and returns its path.
func (signer *OpenPGPSigner) Sign(executionContext context.Context, manifestPath string, trust TrustContext) (string, error) {
	if executionContext != nil {
		if contextError := executionContext.Err(); contextError != nil {
			return "", contextError
		}
	}

	manifestContent, readError := os.ReadFile(manifestPath)
	if readError != nil {
		return "", ErrManifestMissing
	}

	keyring, keyringError := signer.loadKeyring()
	if keyringError != nil {
		return "", &ToolFailureError{Backend: openpgpBackendNameConstant, Cause: keyringError}
	}

	signingEntity := selectSigningEntity(keyring, trust.KeyIdentifier)
	if signingEntity == nil {
		missingKeyError := fmt.Errorf(signingKeyMissingTemplateConstant, trust.KeyIdentifier, signer.keyringPath)
		return "", &ToolFailureError{Backend: openpgpBackendNameConstant, Cause: missingKeyError}
	}

	signaturePath := SignaturePathFor(manifestPath)
	signatureFile, createError := os.Create(signaturePath)
	if createError != nil {
		wrappedError := fmt.Errorf(signatureCreateErrorTemplateConstant, signaturePath, createError)
		return "", &ToolFailureError{Backend: openpgpBackendNameConstant, Cause: wrappedError}
	}
	defer func() { _ = signatureFile.Close() }()

	if signError := openpgp.ArmoredDetachSign(signatureFile, signingEntity, bytes.NewReader(manifestContent), nil); signError != nil {
		_ = os.Remove(signaturePath)
		wrappedError := fmt.Errorf(detachedSignErrorTemplateConstant, manifestPath, signError)
		return "", &ToolFailureError{Backend: openpgpBackendNameConstant, Cause: wrappedError}
	}

	return signaturePath, nil
}

// Verify checks the detached signature against the manifest bytes on disk.
func (signer *OpenPGPSigner) Verify(executionContext context.Context, manifestPath string, signaturePath string, trust TrustContext) (Outcome, error) {
	if executionContext != nil {
		if contextError := executionContext.Err(); contextError != nil {
			return Outcome{}, contextError
		}
	}

	manifestContent, manifestError := os.ReadFile(manifestPath)
	if manifestError != nil {
		return Outcome{}, ErrSignatureArtifactsMissing
	}
	signatureContent, signatureError := os.ReadFile(signaturePath)
	if signatureError != nil {
		return Outcome{}, ErrSignatureArtifactsMissing
	}

	keyring, keyringError := signer.loadKeyring()
	if keyringError != nil {
		return Outcome{}, &ToolFailureError{Backend: openpgpBackendNameConstant, Cause: keyringError}
	}

	signerEntity, verificationError := openpgp.CheckArmoredDetachedSignature(
		keyring,
		bytes.NewReader(manifestContent),
		bytes.NewReader(signatureContent),
		nil,
	)
	if verificationError != nil {
		return Outcome{Valid: false, Diagnostic: fmt.Sprintf(rejectedSignatureDiagnosticTemplate, verificationError)}, nil
	}

	if len(trust.KeyIdentifier) > 0 && !entityMatchesIdentifier(signerEntity, trust.KeyIdentifier) {
		diagnostic := fmt.Sprintf(untrustedSignerDiagnosticTemplate, signerEntity.PrimaryKey.KeyIdString(), trust.KeyIdentifier)
		return Outcome{Valid: false, Diagnostic: diagnostic}, nil
	}

	return Outcome{Valid: true, Diagnostic: signerEntity.PrimaryKey.KeyIdString()}, nil
}

func (signer *OpenPGPSigner) loadKeyring() (openpgp.EntityList, error) {
	keyringFile, openError := os.Open(signer.keyringPath)
	if openError != nil {
		return nil, fmt.Errorf(keyringOpenErrorTemplateConstant, signer.keyringPath, openError)
	}
	defer func() { _ = keyringFile.Close() }()

	keyring, parseError := openpgp.ReadArmoredKeyRing(keyringFile)
	if parseError != nil {
		return nil, fmt.Errorf(keyringParseErrorTemplateConstant, signer.keyringPath, parseError)
	}
	return keyring, nil
}

func selectSigningEntity(keyring openpgp.EntityList, keyIdentifier string) *openpgp.Entity {
	for _, candidateEntity := range keyring {
		if candidateEntity.PrivateKey == nil {
			continue
		}
		if keyIdentifier == anySigningKeySelectorConstant || entityMatchesIdentifier(candidateEntity, keyIdentifier) {
			return candidateEntity
		}
	}
	return nil
}

func entityMatchesIdentifier(candidateEntity *openpgp.Entity, keyIdentifier string) bool {
	normalizedIdentifier := strings.ToUpper(keyIdentifier)
	if strings.HasSuffix(candidateEntity.PrimaryKey.KeyIdString(), normalizedIdentifier) {
		return true
	}
	for identityName := range candidateEntity.Identities {
		if strings.Contains(strings.ToLower(identityName), strings.ToLower(keyIdentifier)) {
			return true
		}
	}
	return false
}
