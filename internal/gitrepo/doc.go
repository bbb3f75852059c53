// Package gitrepo records manifest artifacts in repository history and
// synchronizes them with the configured remote.
package gitrepo
