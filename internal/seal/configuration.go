package seal

import "fmt"

const (
	rootsConfigurationKeyConstant         = "roots"
	keyIdentifierConfigurationKeyConstant = "key_id"
	signerConfigurationKeyConstant        = "signer"
	keyringConfigurationKeyConstant       = "keyring"
	commitMessageConfigurationKeyConstant = "commit_message"
	pushConfigurationKeyConstant          = "push"
	reportFormatConfigurationKeyConstant  = "report_format"
	configurationKeyTemplateConstant      = "%s.%s"

	// SignerBackendGPG selects the gpg binary for signing operations.
	SignerBackendGPG = "gpg"
	// SignerBackendOpenPGP selects the native keyring backend.
	SignerBackendOpenPGP = "openpgp"

	// ReportFormatText renders human-readable batch reports.
	ReportFormatText = "text"
	// ReportFormatYAML renders machine-readable batch reports.
	ReportFormatYAML = "yaml"

	defaultRootConstant = "."
)

// CommandConfiguration captures the configurable behavior shared by the seal
// and verify commands.
type CommandConfiguration struct {
	Roots         []string `mapstructure:"roots"`
	KeyIdentifier string   `mapstructure:"key_id"`
	SignerBackend string   `mapstructure:"signer"`
	KeyringPath   string   `mapstructure:"keyring"`
	CommitMessage string   `mapstructure:"commit_message"`
	PushEnabled   bool     `mapstructure:"push"`
	ReportFormat  string   `mapstructure:"report_format"`
}

// DefaultConfigurationValues returns the configuration defaults registered
// under the provided key prefix.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	return map[string]any{
		prefixedConfigurationKey(configurationKeyPrefix, rootsConfigurationKeyConstant):         []string{defaultRootConstant},
		prefixedConfigurationKey(configurationKeyPrefix, keyIdentifierConfigurationKeyConstant): "",
		prefixedConfigurationKey(configurationKeyPrefix, signerConfigurationKeyConstant):        SignerBackendGPG,
		prefixedConfigurationKey(configurationKeyPrefix, keyringConfigurationKeyConstant):       "",
		prefixedConfigurationKey(configurationKeyPrefix, commitMessageConfigurationKeyConstant): "",
		prefixedConfigurationKey(configurationKeyPrefix, pushConfigurationKeyConstant):          true,
		prefixedConfigurationKey(configurationKeyPrefix, reportFormatConfigurationKeyConstant):  ReportFormatText,
	}
}

func prefixedConfigurationKey(configurationKeyPrefix string, configurationKey string) string {
	return fmt.Sprintf(configurationKeyTemplateConstant, configurationKeyPrefix, configurationKey)
}
