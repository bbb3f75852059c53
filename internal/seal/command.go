package seal

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitseal/gitseal/internal/execshell"
	"github.com/gitseal/gitseal/internal/gitrepo"
	"github.com/gitseal/gitseal/internal/manifest"
	"github.com/gitseal/gitseal/internal/repos/discovery"
	"github.com/gitseal/gitseal/internal/signature"
	"github.com/gitseal/gitseal/internal/verify"
)

const (
	sealCommandUseConstant         = "seal [roots...]"
	sealCommandShortDescription    = "Build, sign, and record checksum manifests"
	sealCommandLongDescription     = "Seal enumerates repository files, writes an MD5 manifest, signs it with a detached armored signature, and records both artifacts in git history."
	verifyCommandUseConstant       = "verify [roots...]"
	verifyCommandShortDescription  = "Verify manifest signatures and file integrity"
	verifyCommandLongDescription   = "Verify checks the detached signature over each repository manifest and re-hashes every recorded file, reporting all divergences."
	flagKeyNameConstant            = "key"
	flagKeyDescriptionConstant     = "key identifier used for signing and verification"
	flagMessageNameConstant        = "message"
	flagMessageDescription         = "commit message recorded when publishing artifacts"
	flagNoPushNameConstant         = "no-push"
	flagNoPushDescriptionConstant  = "skip pushing the recorded artifacts to the remote"
	flagSignerNameConstant         = "signer"
	flagSignerDescriptionConstant  = "signing backend: gpg or openpgp"
	flagKeyringNameConstant        = "keyring"
	flagKeyringDescriptionConstant = "armored keyring path for the openpgp backend"
	flagReportFormatNameConstant   = "report-format"
	flagReportFormatDescription    = "report format: text or yaml"
	unknownSignerTemplateConstant  = "unknown signer backend: %s"
	keyringRequiredMessageConstant = "the openpgp backend requires a keyring path"
	batchFailedMessageConstant     = "one or more repositories failed"
)

// ErrBatchFailed reports that at least one repository did not complete its pipeline.
var ErrBatchFailed = errors.New(batchFailedMessageConstant)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the resolved command configuration.
type ConfigurationProvider func() CommandConfiguration

// SealCommandBuilder assembles the seal cobra command with configurable dependencies.
type SealCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Discoverer            RepositoryDiscoverer
	Builder               ManifestBuilder
	Signer                signature.Signer
	Publisher             ArtifactPublisher
}

// Build constructs the cobra command for sealing workflows.
func (builder *SealCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   sealCommandUseConstant,
		Short: sealCommandShortDescription,
		Long:  sealCommandLongDescription,
		RunE:  builder.run,
	}

	command.Flags().String(flagKeyNameConstant, "", flagKeyDescriptionConstant)
	command.Flags().String(flagMessageNameConstant, "", flagMessageDescription)
	command.Flags().Bool(flagNoPushNameConstant, false, flagNoPushDescriptionConstant)
	command.Flags().String(flagSignerNameConstant, "", flagSignerDescriptionConstant)
	command.Flags().String(flagKeyringNameConstant, "", flagKeyringDescriptionConstant)
	command.Flags().String(flagReportFormatNameConstant, "", flagReportFormatDescription)

	return command, nil
}

func (builder *SealCommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := resolveConfiguration(builder.ConfigurationProvider, command, arguments)
	logger := resolveLogger(builder.LoggerProvider)

	noPushFlag, _ := command.Flags().GetBool(flagNoPushNameConstant)
	if command.Flags().Changed(flagNoPushNameConstant) && noPushFlag {
		configuration.PushEnabled = false
	}
	if command.Flags().Changed(flagMessageNameConstant) {
		configuration.CommitMessage, _ = command.Flags().GetString(flagMessageNameConstant)
	}

	signer, executor, signerError := resolveSigner(builder.Signer, configuration, logger)
	if signerError != nil {
		return signerError
	}

	publisher := builder.Publisher
	if publisher == nil {
		publisher = gitrepo.NewSyncGateway(executor)
	}

	manifestBuilder := builder.Builder
	if manifestBuilder == nil {
		manifestBuilder = manifest.NewBuilder(nil)
	}

	service := NewService(logger, resolveDiscoverer(builder.Discoverer), manifestBuilder, signer, publisher, nil)

	batchReport, publishError := service.Publish(command.Context(), PublishOptions{
		Roots:         configuration.Roots,
		Trust:         signature.TrustContext{KeyIdentifier: configuration.KeyIdentifier},
		CommitMessage: configuration.CommitMessage,
		PushEnabled:   configuration.PushEnabled,
	})
	if publishError != nil {
		return publishError
	}

	if renderError := batchReport.Render(command.OutOrStdout(), configuration.ReportFormat); renderError != nil {
		return renderError
	}
	if !batchReport.AllSucceeded() {
		return ErrBatchFailed
	}
	return nil
}

// VerifyCommandBuilder assembles the verify cobra command with configurable dependencies.
type VerifyCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Discoverer            RepositoryDiscoverer
	Signer                signature.Signer
	Checker               IntegrityChecker
}

// Build constructs the cobra command for verification workflows.
func (builder *VerifyCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   verifyCommandUseConstant,
		Short: verifyCommandShortDescription,
		Long:  verifyCommandLongDescription,
		RunE:  builder.run,
	}

	command.Flags().String(flagKeyNameConstant, "", flagKeyDescriptionConstant)
	command.Flags().String(flagSignerNameConstant, "", flagSignerDescriptionConstant)
	command.Flags().String(flagKeyringNameConstant, "", flagKeyringDescriptionConstant)
	command.Flags().String(flagReportFormatNameConstant, "", flagReportFormatDescription)

	return command, nil
}

func (builder *VerifyCommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := resolveConfiguration(builder.ConfigurationProvider, command, arguments)
	logger := resolveLogger(builder.LoggerProvider)

	signer, _, signerError := resolveSigner(builder.Signer, configuration, logger)
	if signerError != nil {
		return signerError
	}

	checker := builder.Checker
	if checker == nil {
		checker = verify.NewIntegrityVerifier(nil)
	}

	service := NewService(logger, resolveDiscoverer(builder.Discoverer), nil, signer, nil, checker)

	batchReport, verifyError := service.Verify(command.Context(), VerifyOptions{
		Roots: configuration.Roots,
		Trust: signature.TrustContext{KeyIdentifier: configuration.KeyIdentifier},
	})
	if verifyError != nil {
		return verifyError
	}

	if renderError := batchReport.Render(command.OutOrStdout(), configuration.ReportFormat); renderError != nil {
		return renderError
	}
	if !batchReport.AllSucceeded() {
		return ErrBatchFailed
	}
	return nil
}

func resolveConfiguration(configurationProvider ConfigurationProvider, command *cobra.Command, arguments []string) CommandConfiguration {
	configuration := CommandConfiguration{}
	if configurationProvider != nil {
		configuration = configurationProvider()
	}

	if len(arguments) > 0 {
		configuration.Roots = append([]string{}, arguments...)
	}
	if len(configuration.Roots) == 0 {
		configuration.Roots = []string{defaultRootConstant}
	}

	if command.Flags().Changed(flagKeyNameConstant) {
		configuration.KeyIdentifier, _ = command.Flags().GetString(flagKeyNameConstant)
	}
	if command.Flags().Changed(flagSignerNameConstant) {
		configuration.SignerBackend, _ = command.Flags().GetString(flagSignerNameConstant)
	}
	if command.Flags().Changed(flagKeyringNameConstant) {
		configuration.KeyringPath, _ = command.Flags().GetString(flagKeyringNameConstant)
	}
	if command.Flags().Changed(flagReportFormatNameConstant) {
		configuration.ReportFormat, _ = command.Flags().GetString(flagReportFormatNameConstant)
	}

	if len(configuration.SignerBackend) == 0 {
		configuration.SignerBackend = SignerBackendGPG
	}

	return configuration
}

func resolveLogger(loggerProvider LoggerProvider) *zap.Logger {
	if loggerProvider == nil {
		return zap.NewNop()
	}
	logger := loggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveDiscoverer(discoverer RepositoryDiscoverer) RepositoryDiscoverer {
	if discoverer != nil {
		return discoverer
	}
	return discovery.NewFilesystemRepositoryDiscoverer()
}

func resolveSigner(configuredSigner signature.Signer, configuration CommandConfiguration, logger *zap.Logger) (signature.Signer, *execshell.ShellExecutor, error) {
	executor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if executorError != nil {
		return nil, nil, executorError
	}

	if configuredSigner != nil {
		return configuredSigner, executor, nil
	}

	switch configuration.SignerBackend {
	case SignerBackendGPG:
		return signature.NewCLISigner(executor), executor, nil
	case SignerBackendOpenPGP:
		if len(configuration.KeyringPath) == 0 {
			return nil, nil, errors.New(keyringRequiredMessageConstant)
		}
		return signature.NewOpenPGPSigner(configuration.KeyringPath), executor, nil
	default:
		return nil, nil, fmt.Errorf(unknownSignerTemplateConstant, configuration.SignerBackend)
	}
}
