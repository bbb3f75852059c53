package seal_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gitseal/gitseal/internal/manifest"
	"github.com/gitseal/gitseal/internal/seal"
	"github.com/gitseal/gitseal/internal/signature"
	"github.com/gitseal/gitseal/internal/verify"
)

const (
	serviceFirstRepositoryConstant  = "/repos/alpha"
	serviceSecondRepositoryConstant = "/repos/bravo"
	serviceThirdRepositoryConstant  = "/repos/charlie"
	serviceBuildFailureMessage      = "unreadable file"
	serviceFileContentConstant      = "payload"
)

type staticDiscoverer struct {
	repositoryPaths []string
	discoveryError  error
}

func (discoverer *staticDiscoverer) DiscoverRepositories([]string) ([]string, error) {
	return discoverer.repositoryPaths, discoverer.discoveryError
}

type scriptedManifestBuilder struct {
	failingRepositories map[string]error
	builtRepositories   []string
}

func (builder *scriptedManifestBuilder) Build(rootPath string) (manifest.Manifest, error) {
	if buildError, shouldFail := builder.failingRepositories[rootPath]; shouldFail {
		return manifest.Manifest{}, buildError
	}
	builder.builtRepositories = append(builder.builtRepositories, rootPath)
	return manifest.Manifest{Entries: []manifest.Entry{{RelativePath: "alpha.txt", Digest: "9dd4e461268c8034f5c8564e155c67a6"}}}, nil
}

func (builder *scriptedManifestBuilder) WriteManifest(rootPath string, _ manifest.Manifest) (string, error) {
	return filepath.Join(rootPath, manifest.ManifestFileName), nil
}

type scriptedSigner struct {
	signError     error
	verifyOutcome signature.Outcome
	verifyError   error
	signedPaths   []string
}

func (signer *scriptedSigner) Sign(_ context.Context, manifestPath string, _ signature.TrustContext) (string, error) {
	if signer.signError != nil {
		return "", signer.signError
	}
	signer.signedPaths = append(signer.signedPaths, manifestPath)
	return signature.SignaturePathFor(manifestPath), nil
}

func (signer *scriptedSigner) Verify(_ context.Context, _ string, _ string, _ signature.TrustContext) (signature.Outcome, error) {
	return signer.verifyOutcome, signer.verifyError
}

type scriptedPublisher struct {
	changedRepositories map[string]bool
	publishedPaths      []string
}

func (publisher *scriptedPublisher) PublishManifestArtifacts(_ context.Context, repositoryPath string, _ string, _ bool) (bool, error) {
	publisher.publishedPaths = append(publisher.publishedPaths, repositoryPath)
	if publisher.changedRepositories == nil {
		return true, nil
	}
	return publisher.changedRepositories[repositoryPath], nil
}

type scriptedChecker struct {
	reports map[string]verify.Report
}

func (checker *scriptedChecker) VerifyIntegrity(rootPath string) (verify.Report, error) {
	return checker.reports[rootPath], nil
}

func TestServicePublishContinuesPastFailingRepository(testInstance *testing.T) {
	discoverer := &staticDiscoverer{repositoryPaths: []string{serviceFirstRepositoryConstant, serviceSecondRepositoryConstant, serviceThirdRepositoryConstant}}
	builder := &scriptedManifestBuilder{failingRepositories: map[string]error{serviceSecondRepositoryConstant: errors.New(serviceBuildFailureMessage)}}
	signer := &scriptedSigner{}
	publisher := &scriptedPublisher{}

	service := seal.NewService(zaptest.NewLogger(testInstance), discoverer, builder, signer, publisher, nil)
	batchReport, publishError := service.Publish(context.Background(), seal.PublishOptions{PushEnabled: true})
	require.NoError(testInstance, publishError)

	require.Len(testInstance, batchReport.Repositories, 3)
	require.Equal(testInstance, 2, batchReport.SucceededCount())
	require.Equal(testInstance, 1, batchReport.FailedCount())
	require.False(testInstance, batchReport.AllSucceeded())

	failedReport := batchReport.Repositories[1]
	require.Equal(testInstance, serviceSecondRepositoryConstant, failedReport.RepositoryPath)
	require.False(testInstance, failedReport.Succeeded)
	require.Equal(testInstance, seal.StageDiscovered, failedReport.StageReached)
	require.Contains(testInstance, failedReport.FailureMessage, serviceBuildFailureMessage)

	require.Equal(testInstance, []string{serviceFirstRepositoryConstant, serviceThirdRepositoryConstant}, publisher.publishedPaths)
}

func TestServicePublishRecordsStageProgression(testInstance *testing.T) {
	discoverer := &staticDiscoverer{repositoryPaths: []string{serviceFirstRepositoryConstant}}
	builder := &scriptedManifestBuilder{}
	signer := &scriptedSigner{}
	publisher := &scriptedPublisher{changedRepositories: map[string]bool{serviceFirstRepositoryConstant: false}}

	service := seal.NewService(nil, discoverer, builder, signer, publisher, nil)
	batchReport, publishError := service.Publish(context.Background(), seal.PublishOptions{})
	require.NoError(testInstance, publishError)

	repositoryReport := batchReport.Repositories[0]
	require.True(testInstance, repositoryReport.Succeeded)
	require.Equal(testInstance, seal.StageSynced, repositoryReport.StageReached)
	require.False(testInstance, repositoryReport.Changed)
	require.Equal(testInstance, []string{filepath.Join(serviceFirstRepositoryConstant, manifest.ManifestFileName)}, signer.signedPaths)
}

func TestServicePublishStopsOnCancelledContext(testInstance *testing.T) {
	discoverer := &staticDiscoverer{repositoryPaths: []string{serviceFirstRepositoryConstant, serviceSecondRepositoryConstant}}
	service := seal.NewService(nil, discoverer, &scriptedManifestBuilder{}, &scriptedSigner{}, &scriptedPublisher{}, nil)

	cancelledContext, cancelFunction := context.WithCancel(context.Background())
	cancelFunction()

	batchReport, publishError := service.Publish(cancelledContext, seal.PublishOptions{})
	require.ErrorIs(testInstance, publishError, context.Canceled)
	require.Empty(testInstance, batchReport.Repositories)
}

func TestServiceVerifyReportsSignatureAndIntegrity(testInstance *testing.T) {
	discoverer := &staticDiscoverer{repositoryPaths: []string{serviceFirstRepositoryConstant, serviceSecondRepositoryConstant}}
	signer := &scriptedSigner{verifyOutcome: signature.Outcome{Valid: true}}
	checker := &scriptedChecker{reports: map[string]verify.Report{
		serviceFirstRepositoryConstant: {Valid: true},
		serviceSecondRepositoryConstant: {Valid: false, Failures: []verify.FileFailure{
			{RelativePath: "alpha.txt", Reason: verify.FailureReasonDigestMismatch},
		}},
	}}

	service := seal.NewService(zaptest.NewLogger(testInstance), discoverer, nil, signer, nil, checker)
	batchReport, verifyError := service.Verify(context.Background(), seal.VerifyOptions{})
	require.NoError(testInstance, verifyError)

	require.Len(testInstance, batchReport.Repositories, 2)
	require.True(testInstance, batchReport.Repositories[0].Succeeded)
	require.Equal(testInstance, seal.StageIntegrityChecked, batchReport.Repositories[0].StageReached)

	failedReport := batchReport.Repositories[1]
	require.False(testInstance, failedReport.Succeeded)
	require.True(testInstance, failedReport.SignatureValid)
	require.False(testInstance, failedReport.IntegrityValid)
	require.Contains(testInstance, failedReport.Failures, "alpha.txt: digest_mismatch")
}

func TestServiceVerifyCollectsSignatureDiagnostics(testInstance *testing.T) {
	discoverer := &staticDiscoverer{repositoryPaths: []string{serviceFirstRepositoryConstant}}
	signer := &scriptedSigner{verifyOutcome: signature.Outcome{Valid: false, Diagnostic: "gpg: BAD signature\ngpg: details"}}
	checker := &scriptedChecker{reports: map[string]verify.Report{serviceFirstRepositoryConstant: {Valid: true}}}

	service := seal.NewService(nil, discoverer, nil, signer, nil, checker)
	batchReport, verifyError := service.Verify(context.Background(), seal.VerifyOptions{})
	require.NoError(testInstance, verifyError)

	repositoryReport := batchReport.Repositories[0]
	require.False(testInstance, repositoryReport.Succeeded)
	require.False(testInstance, repositoryReport.SignatureValid)
	require.True(testInstance, repositoryReport.IntegrityValid)
	require.Equal(testInstance, []string{"signature: gpg: BAD signature"}, repositoryReport.Failures)
}

func TestServicePublishEndToEndWithRealBuilder(testInstance *testing.T) {
	repositoryPath := testInstance.TempDir()
	require.NoError(testInstance, os.WriteFile(filepath.Join(repositoryPath, "alpha.txt"), []byte(serviceFileContentConstant), 0o644))

	discoverer := &staticDiscoverer{repositoryPaths: []string{repositoryPath}}
	signer := &scriptedSigner{}
	publisher := &scriptedPublisher{}

	service := seal.NewService(zaptest.NewLogger(testInstance), discoverer, manifest.NewBuilder(nil), signer, publisher, nil)
	batchReport, publishError := service.Publish(context.Background(), seal.PublishOptions{PushEnabled: true})
	require.NoError(testInstance, publishError)
	require.True(testInstance, batchReport.AllSucceeded())

	manifestContent, readError := os.ReadFile(filepath.Join(repositoryPath, manifest.ManifestFileName))
	require.NoError(testInstance, readError)

	parsedManifest, parseError := manifest.Parse(manifestContent)
	require.NoError(testInstance, parseError)
	require.Len(testInstance, parsedManifest.Entries, 1)
	require.Equal(testInstance, "alpha.txt", parsedManifest.Entries[0].RelativePath)
}
