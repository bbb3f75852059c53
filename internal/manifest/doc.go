// Package manifest enumerates repository files and produces checksum manifests
// compatible with the md5sum line format.
package manifest
