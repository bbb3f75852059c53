// Package signature produces and verifies detached armored signatures over
// checksum manifests, through either the gpg binary or a native OpenPGP keyring.
package signature
