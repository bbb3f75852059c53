// Package seal orchestrates the manifest lifecycle across batches of
// repositories: building, signing, publishing, and verifying integrity
// artifacts.
package seal
