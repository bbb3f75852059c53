// Package cli assembles the gitseal command hierarchy, configuration loading,
// and logging for the command-line entrypoint.
package cli
