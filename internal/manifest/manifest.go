package manifest

import (
	"fmt"
	"strings"
)

const (
	// ManifestFileName is the checksum manifest artifact written at a repository root.
	ManifestFileName = "hashes.md5"
	// SignatureFileName is the detached armored signature artifact covering the manifest.
	SignatureFileName = "hashes.md5.asc"

	digestHexLengthConstant               = 32
	manifestLineTemplateConstant          = "%s  ./%s\n"
	manifestPathPrefixConstant            = "./"
	manifestFieldSeparatorConstant        = "  "
	hexadecimalDigitsConstant             = "0123456789abcdef"
	malformedLineErrorTemplateConstant    = "malformed manifest line %d: %q"
	duplicatePathErrorTemplateConstant    = "duplicate manifest path on line %d: %q"
	invalidDigestErrorTemplateConstant    = "invalid digest on manifest line %d: %q"
	unexpectedPrefixErrorTemplateConstant = "manifest line %d path missing ./ prefix: %q"
)

// Entry associates a repository-relative path with its hexadecimal MD5 digest.
type Entry struct {
	RelativePath string
	Digest       string
}

// Manifest holds the ordered collection of checksum entries for one repository.
type Manifest struct {
	Entries []Entry
}

// Serialize renders the manifest in md5sum format: one "<digest>  ./<path>\n" line per entry.
func (manifestDocument Manifest) Serialize() []byte {
	var serialized strings.Builder
	for _, manifestEntry := range manifestDocument.Entries {
		serialized.WriteString(fmt.Sprintf(manifestLineTemplateConstant, manifestEntry.Digest, manifestEntry.RelativePath))
	}
	return []byte(serialized.String())
}

// Lookup returns the digest recorded for the provided relative path.
func (manifestDocument Manifest) Lookup(relativePath string) (string, bool) {
	for _, manifestEntry := range manifestDocument.Entries {
		if manifestEntry.RelativePath == relativePath {
			return manifestEntry.Digest, true
		}
	}
	return "", false
}

// Parse reconstructs a manifest from serialized md5sum-format content.
func Parse(serializedManifest []byte) (Manifest, error) {
	parsedManifest := Manifest{}
	seenRelativePaths := map[string]struct{}{}

	manifestLines := strings.Split(string(serializedManifest), "\n")
	for lineIndex, manifestLine := range manifestLines {
		if len(manifestLine) == 0 {
			continue
		}
		lineNumber := lineIndex + 1

		separatorIndex := strings.Index(manifestLine, manifestFieldSeparatorConstant)
		if separatorIndex != digestHexLengthConstant {
			return Manifest{}, fmt.Errorf(malformedLineErrorTemplateConstant, lineNumber, manifestLine)
		}

		digestField := manifestLine[:separatorIndex]
		if !isLowercaseHexadecimal(digestField) {
			return Manifest{}, fmt.Errorf(invalidDigestErrorTemplateConstant, lineNumber, digestField)
		}

		pathField := manifestLine[separatorIndex+len(manifestFieldSeparatorConstant):]
		if !strings.HasPrefix(pathField, manifestPathPrefixConstant) {
			return Manifest{}, fmt.Errorf(unexpectedPrefixErrorTemplateConstant, lineNumber, pathField)
		}

		relativePath := strings.TrimPrefix(pathField, manifestPathPrefixConstant)
		if len(relativePath) == 0 {
			return Manifest{}, fmt.Errorf(malformedLineErrorTemplateConstant, lineNumber, manifestLine)
		}
		if _, alreadySeen := seenRelativePaths[relativePath]; alreadySeen {
			return Manifest{}, fmt.Errorf(duplicatePathErrorTemplateConstant, lineNumber, relativePath)
		}
		seenRelativePaths[relativePath] = struct{}{}

		parsedManifest.Entries = append(parsedManifest.Entries, Entry{RelativePath: relativePath, Digest: digestField})
	}

	return parsedManifest, nil
}

func isLowercaseHexadecimal(candidate string) bool {
	for _, candidateRune := range candidate {
		if !strings.ContainsRune(hexadecimalDigitsConstant, candidateRune) {
			return false
		}
	}
	return len(candidate) == digestHexLengthConstant
}
