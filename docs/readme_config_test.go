package docs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gitseal/gitseal/cmd/cli"
	"github.com/gitseal/gitseal/internal/seal"
)

const (
	readmeFileNameConstant           = "README.md"
	yamlFenceStartConstant           = "```yaml"
	yamlFenceEndConstant             = "```"
	configHeaderMarkerConstant       = "# config.yaml"
	parentDirectoryReferenceConstant = ".."
	missingHeaderMessageConstant     = "README example missing config header marker"
	missingStartFenceMessageConstant = "README example missing yaml fence start"
	missingEndFenceMessageConstant   = "README example missing yaml fence end"
)

func TestReadmeConfigurationExampleParses(testInstance *testing.T) {
	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)

	readmePath := filepath.Join(workingDirectory, parentDirectoryReferenceConstant, readmeFileNameConstant)
	contentBytes, readError := os.ReadFile(readmePath)
	require.NoError(testInstance, readError)

	contentText := string(contentBytes)
	headerIndex := strings.Index(contentText, configHeaderMarkerConstant)
	require.GreaterOrEqual(testInstance, headerIndex, 0, missingHeaderMessageConstant)

	fenceStartIndex := strings.LastIndex(contentText[:headerIndex], yamlFenceStartConstant)
	require.GreaterOrEqual(testInstance, fenceStartIndex, 0, missingStartFenceMessageConstant)

	snippetStart := fenceStartIndex + len(yamlFenceStartConstant)
	fenceEndOffset := strings.Index(contentText[snippetStart:], yamlFenceEndConstant)
	require.GreaterOrEqual(testInstance, fenceEndOffset, 0, missingEndFenceMessageConstant)

	configurationSnippet := contentText[snippetStart : snippetStart+fenceEndOffset]

	var rawConfiguration map[string]any
	require.NoError(testInstance, yaml.Unmarshal([]byte(configurationSnippet), &rawConfiguration))

	var decodedConfiguration cli.ApplicationConfiguration
	require.NoError(testInstance, mapstructure.Decode(rawConfiguration, &decodedConfiguration))

	require.NotEmpty(testInstance, decodedConfiguration.Common.LogLevel)
	require.NotEmpty(testInstance, decodedConfiguration.Tools.Seal.Roots)
	require.Equal(testInstance, seal.SignerBackendGPG, decodedConfiguration.Tools.Seal.SignerBackend)
	require.NotEmpty(testInstance, decodedConfiguration.Tools.Verify.Roots)
}
