// Package verify re-hashes repository files against a recorded checksum manifest
// and reports every divergence.
package verify
