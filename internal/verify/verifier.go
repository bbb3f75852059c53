package verify

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gitseal/gitseal/internal/manifest"
)

const (
	manifestMissingMessageConstant      = "checksum manifest not found"
	manifestUnreadableTemplateConstant  = "failed to read manifest %s: %w"
	manifestMalformedTemplateConstant   = "failed to parse manifest %s: %w"
	failureDescriptionTemplateConstant  = "%s: %s"
	failureReasonMissingStringConstant  = "missing"
	failureReasonUnreadableString       = "unreadable"
	failureReasonMismatchStringConstant = "digest_mismatch"
	failureReasonUntrackedString        = "untracked"
)

// ErrManifestMissing reports that the repository has no checksum manifest to verify against.
var ErrManifestMissing = errors.New(manifestMissingMessageConstant)

// FailureReason classifies why a file diverged from the manifest.
type FailureReason string

// Divergence classifications.
const (
	FailureReasonMissing        FailureReason = FailureReason(failureReasonMissingStringConstant)
	FailureReasonUnreadable     FailureReason = FailureReason(failureReasonUnreadableString)
	FailureReasonDigestMismatch FailureReason = FailureReason(failureReasonMismatchStringConstant)
	FailureReasonUntracked      FailureReason = FailureReason(failureReasonUntrackedString)
)

// FileFailure describes one file that diverged from the manifest.
type FileFailure struct {
	RelativePath string
	Reason       FailureReason
	Detail       string
}

// Describe renders the failure for diagnostics.
func (failure FileFailure) Describe() string {
	return fmt.Sprintf(failureDescriptionTemplateConstant, failure.RelativePath, string(failure.Reason))
}

// Report aggregates the verification outcome for one repository.
type Report struct {
	Valid    bool
	Failures []FileFailure
}

// IntegrityVerifier re-hashes repository content against the recorded manifest.
type IntegrityVerifier struct {
	enumerator *manifest.FileEnumerator
}

// NewIntegrityVerifier constructs an IntegrityVerifier.
func NewIntegrityVerifier(enumerator *manifest.FileEnumerator) *IntegrityVerifier {
	if enumerator == nil {
		enumerator = manifest.NewFileEnumerator()
	}
	return &IntegrityVerifier{enumerator: enumerator}
}

// VerifyIntegrity compares every manifest entry against the file currently on disk
// and flags files present on disk but absent from the manifest. All divergences are
// collected; the first failure never aborts the pass.
func (verifier *IntegrityVerifier) VerifyIntegrity(rootPath string) (Report, error) {
	manifestPath := filepath.Join(rootPath, manifest.ManifestFileName)
	manifestContent, readError := os.ReadFile(manifestPath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return Report{}, ErrManifestMissing
		}
		return Report{}, fmt.Errorf(manifestUnreadableTemplateConstant, manifestPath, readError)
	}

	recordedManifest, parseError := manifest.Parse(manifestContent)
	if parseError != nil {
		return Report{}, fmt.Errorf(manifestMalformedTemplateConstant, manifestPath, parseError)
	}

	verificationReport := Report{Valid: true}

	for _, manifestEntry := range recordedManifest.Entries {
		absolutePath := filepath.Join(rootPath, filepath.FromSlash(manifestEntry.RelativePath))
		currentDigest, digestError := manifest.DigestFile(absolutePath)
		if digestError != nil {
			failureReason := FailureReasonUnreadable
			if errors.Is(digestError, fs.ErrNotExist) {
				failureReason = FailureReasonMissing
			}
			verificationReport.Failures = append(verificationReport.Failures, FileFailure{
				RelativePath: manifestEntry.RelativePath,
				Reason:       failureReason,
				Detail:       digestError.Error(),
			})
			continue
		}

		if currentDigest != manifestEntry.Digest {
			verificationReport.Failures = append(verificationReport.Failures, FileFailure{
				RelativePath: manifestEntry.RelativePath,
				Reason:       FailureReasonDigestMismatch,
				Detail:       currentDigest,
			})
		}
	}

	currentPaths, enumerationError := verifier.enumerator.EnumerateFiles(rootPath)
	if enumerationError != nil {
		return Report{}, enumerationError
	}
	for _, currentPath := range currentPaths {
		if _, recorded := recordedManifest.Lookup(currentPath); !recorded {
			verificationReport.Failures = append(verificationReport.Failures, FileFailure{
				RelativePath: currentPath,
				Reason:       FailureReasonUntracked,
			})
		}
	}

	verificationReport.Valid = len(verificationReport.Failures) == 0
	return verificationReport, nil
}
