// Package keys provides the signer identities that authorize registry transactions.
//
// Two schemes are supported:
//   - ed25519: the signer address is the 32-byte public key.
//   - dilithium3 (post-quantum): the public key does not fit an address, so the
//     signer address is a domain-separated SHA3-256 digest of it.
//
// Signatures always cover a digest of the message, never the raw bytes:
// sha256 for ed25519 and sha3-256 for dilithium3.
package keys
