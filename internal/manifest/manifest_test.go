package manifest_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitseal/gitseal/internal/manifest"
)

const (
	knownDigestLetterXConstant          = "9dd4e461268c8034f5c8564e155c67a6"
	knownDigestLetterYConstant          = "415290769594460e2e485922904f345d"
	serializedPairConstant              = knownDigestLetterXConstant + "  ./alpha.txt\n" + knownDigestLetterYConstant + "  ./nested/beta.txt\n"
	malformedSeparatorLineConstant      = knownDigestLetterXConstant + " ./alpha.txt\n"
	malformedDigestLineConstant         = "ZZd4e461268c8034f5c8564e155c67a6  ./alpha.txt\n"
	missingPrefixLineConstant           = knownDigestLetterXConstant + "  alpha.txt\n"
	duplicatePathContentConstant        = knownDigestLetterXConstant + "  ./alpha.txt\n" + knownDigestLetterYConstant + "  ./alpha.txt\n"
	parseCaseRoundTripConstant          = "round_trip"
	parseCaseEmptyConstant              = "empty_content"
	parseCaseBadSeparatorConstant       = "single_space_separator_rejected"
	parseCaseBadDigestConstant          = "non_hexadecimal_digest_rejected"
	parseCaseMissingPrefixConstant      = "missing_dot_slash_prefix_rejected"
	parseCaseDuplicatePathConstant      = "duplicate_path_rejected"
	manifestSubtestNameTemplateConstant = "%d_%s"
)

func TestManifestSerializeAndParse(testInstance *testing.T) {
	testCases := []struct {
		name            string
		content         string
		expectError     bool
		expectedEntries []manifest.Entry
	}{
		{
			name:    parseCaseRoundTripConstant,
			content: serializedPairConstant,
			expectedEntries: []manifest.Entry{
				{RelativePath: "alpha.txt", Digest: knownDigestLetterXConstant},
				{RelativePath: "nested/beta.txt", Digest: knownDigestLetterYConstant},
			},
		},
		{
			name:    parseCaseEmptyConstant,
			content: "",
		},
		{
			name:        parseCaseBadSeparatorConstant,
			content:     malformedSeparatorLineConstant,
			expectError: true,
		},
		{
			name:        parseCaseBadDigestConstant,
			content:     malformedDigestLineConstant,
			expectError: true,
		},
		{
			name:        parseCaseMissingPrefixConstant,
			content:     missingPrefixLineConstant,
			expectError: true,
		},
		{
			name:        parseCaseDuplicatePathConstant,
			content:     duplicatePathContentConstant,
			expectError: true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(manifestSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			parsedManifest, parseError := manifest.Parse([]byte(testCase.content))
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}

			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedEntries, parsedManifest.Entries)
			require.Equal(testInstance, testCase.content, string(parsedManifest.Serialize()))
		})
	}
}

func TestManifestLookup(testInstance *testing.T) {
	parsedManifest, parseError := manifest.Parse([]byte(serializedPairConstant))
	require.NoError(testInstance, parseError)

	digest, found := parsedManifest.Lookup("nested/beta.txt")
	require.True(testInstance, found)
	require.Equal(testInstance, knownDigestLetterYConstant, digest)

	_, found = parsedManifest.Lookup("missing.txt")
	require.False(testInstance, found)
}
