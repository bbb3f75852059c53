package seal

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/gitseal/gitseal/internal/manifest"
	"github.com/gitseal/gitseal/internal/signature"
	"github.com/gitseal/gitseal/internal/verify"
)

const (
	repositoryLogFieldNameConstant    = "repository"
	stageLogFieldNameConstant         = "stage"
	sealStartLogMessageConstant       = "sealing repository"
	sealFailureLogMessageConstant     = "repository sealing failed"
	sealUnchangedLogMessageConstant   = "repository artifacts already current"
	verifyStartLogMessageConstant     = "verifying repository"
	verifyFailureLogMessageConstant   = "repository verification failed"
	signatureFailurePrefixConstant    = "signature: "
	integrityFailureSeparatorConstant = ": "
)

// RepositoryDiscoverer locates repositories beneath configured roots.
type RepositoryDiscoverer interface {
	DiscoverRepositories(rootPaths []string) ([]string, error)
}

// ManifestBuilder computes and persists checksum manifests.
type ManifestBuilder interface {
	Build(rootPath string) (manifest.Manifest, error)
	WriteManifest(rootPath string, builtManifest manifest.Manifest) (string, error)
}

// ArtifactPublisher records manifest artifacts in repository history.
type ArtifactPublisher interface {
	PublishManifestArtifacts(executionContext context.Context, repositoryPath string, commitMessage string, pushEnabled bool) (bool, error)
}

// IntegrityChecker re-hashes repository content against a recorded manifest.
type IntegrityChecker interface {
	VerifyIntegrity(rootPath string) (verify.Report, error)
}

// PublishOptions parameterizes a sealing batch.
type PublishOptions struct {
	Roots         []string
	Trust         signature.TrustContext
	CommitMessage string
	PushEnabled   bool
}

// VerifyOptions parameterizes a verification batch.
type VerifyOptions struct {
	Roots []string
	Trust signature.TrustContext
}

// Service coordinates the manifest lifecycle across repository batches.
type Service struct {
	logger     *zap.Logger
	discoverer RepositoryDiscoverer
	builder    ManifestBuilder
	signer     signature.Signer
	publisher  ArtifactPublisher
	checker    IntegrityChecker
}

// NewService assembles a Service from its collaborators.
func NewService(logger *zap.Logger, discoverer RepositoryDiscoverer, builder ManifestBuilder, signer signature.Signer, publisher ArtifactPublisher, checker IntegrityChecker) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:     logger,
		discoverer: discoverer,
		builder:    builder,
		signer:     signer,
		publisher:  publisher,
		checker:    checker,
	}
}

// Publish builds, signs, and records manifest artifacts for every discovered
// repository. One repository's failure never aborts the batch; cancellation of
// the context does.
func (service *Service) Publish(executionContext context.Context, options PublishOptions) (OrchestrationReport, error) {
	repositoryPaths, discoveryError := service.discoverer.DiscoverRepositories(options.Roots)
	if discoveryError != nil {
		return OrchestrationReport{}, discoveryError
	}

	batchReport := OrchestrationReport{}
	for _, repositoryPath := range repositoryPaths {
		if contextError := executionContext.Err(); contextError != nil {
			return batchReport, contextError
		}
		batchReport.Repositories = append(batchReport.Repositories, service.publishRepository(executionContext, repositoryPath, options))
	}

	return batchReport, nil
}

func (service *Service) publishRepository(executionContext context.Context, repositoryPath string, options PublishOptions) RepositoryReport {
	service.logger.Info(sealStartLogMessageConstant, zap.String(repositoryLogFieldNameConstant, repositoryPath))

	repositoryReport := RepositoryReport{RepositoryPath: repositoryPath, StageReached: StageDiscovered}

	builtManifest, buildError := service.builder.Build(repositoryPath)
	if buildError != nil {
		return service.failPublish(repositoryReport, buildError)
	}

	manifestPath, writeError := service.builder.WriteManifest(repositoryPath, builtManifest)
	if writeError != nil {
		return service.failPublish(repositoryReport, writeError)
	}
	repositoryReport.StageReached = StageBuilt

	if _, signError := service.signer.Sign(executionContext, manifestPath, options.Trust); signError != nil {
		return service.failPublish(repositoryReport, signError)
	}
	repositoryReport.StageReached = StageSigned

	changed, publishError := service.publisher.PublishManifestArtifacts(executionContext, repositoryPath, options.CommitMessage, options.PushEnabled)
	repositoryReport.Changed = changed
	if publishError != nil {
		return service.failPublish(repositoryReport, publishError)
	}
	repositoryReport.StageReached = StageSynced
	repositoryReport.Succeeded = true

	if !changed {
		service.logger.Info(sealUnchangedLogMessageConstant, zap.String(repositoryLogFieldNameConstant, repositoryPath))
	}

	return repositoryReport
}

func (service *Service) failPublish(repositoryReport RepositoryReport, failure error) RepositoryReport {
	repositoryReport.Succeeded = false
	repositoryReport.FailureMessage = failure.Error()
	service.logger.Warn(sealFailureLogMessageConstant,
		zap.String(repositoryLogFieldNameConstant, repositoryReport.RepositoryPath),
		zap.String(stageLogFieldNameConstant, string(repositoryReport.StageReached)),
		zap.Error(failure),
	)
	return repositoryReport
}

// Verify checks the detached signature and the content integrity of every
// discovered repository. Both checks run even when the first fails so the
// report carries the complete picture.
func (service *Service) Verify(executionContext context.Context, options VerifyOptions) (OrchestrationReport, error) {
	repositoryPaths, discoveryError := service.discoverer.DiscoverRepositories(options.Roots)
	if discoveryError != nil {
		return OrchestrationReport{}, discoveryError
	}

	batchReport := OrchestrationReport{}
	for _, repositoryPath := range repositoryPaths {
		if contextError := executionContext.Err(); contextError != nil {
			return batchReport, contextError
		}
		batchReport.Repositories = append(batchReport.Repositories, service.verifyRepository(executionContext, repositoryPath, options))
	}

	return batchReport, nil
}

func (service *Service) verifyRepository(executionContext context.Context, repositoryPath string, options VerifyOptions) RepositoryReport {
	service.logger.Info(verifyStartLogMessageConstant, zap.String(repositoryLogFieldNameConstant, repositoryPath))

	repositoryReport := RepositoryReport{RepositoryPath: repositoryPath, StageReached: StageDiscovered}

	manifestPath := filepath.Join(repositoryPath, manifest.ManifestFileName)
	signaturePath := signature.SignaturePathFor(manifestPath)

	signatureOutcome, signatureError := service.signer.Verify(executionContext, manifestPath, signaturePath, options.Trust)
	if signatureError != nil {
		return service.failVerify(repositoryReport, signatureError)
	}
	repositoryReport.StageReached = StageSignatureChecked
	repositoryReport.SignatureValid = signatureOutcome.Valid
	if !signatureOutcome.Valid {
		repositoryReport.Failures = append(repositoryReport.Failures, signatureFailurePrefixConstant+firstDiagnosticLine(signatureOutcome.Diagnostic))
	}

	integrityReport, integrityError := service.checker.VerifyIntegrity(repositoryPath)
	if integrityError != nil {
		return service.failVerify(repositoryReport, integrityError)
	}
	repositoryReport.StageReached = StageIntegrityChecked
	repositoryReport.IntegrityValid = integrityReport.Valid
	for _, fileFailure := range integrityReport.Failures {
		repositoryReport.Failures = append(repositoryReport.Failures, fileFailure.RelativePath+integrityFailureSeparatorConstant+string(fileFailure.Reason))
	}

	repositoryReport.Succeeded = signatureOutcome.Valid && integrityReport.Valid
	if !repositoryReport.Succeeded {
		service.logger.Warn(verifyFailureLogMessageConstant,
			zap.String(repositoryLogFieldNameConstant, repositoryPath),
			zap.Strings("failures", repositoryReport.Failures),
		)
	}

	return repositoryReport
}

func (service *Service) failVerify(repositoryReport RepositoryReport, failure error) RepositoryReport {
	repositoryReport.Succeeded = false
	repositoryReport.FailureMessage = failure.Error()
	service.logger.Warn(verifyFailureLogMessageConstant,
		zap.String(repositoryLogFieldNameConstant, repositoryReport.RepositoryPath),
		zap.String(stageLogFieldNameConstant, string(repositoryReport.StageReached)),
		zap.Error(failure),
	)
	return repositoryReport
}

func firstDiagnosticLine(diagnostic string) string {
	if newlineIndex := strings.IndexByte(diagnostic, '\n'); newlineIndex >= 0 {
		return diagnostic[:newlineIndex]
	}
	return diagnostic
}
