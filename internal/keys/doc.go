// Package keys provides typed wrappers for the process keyring: a 32-byte
// SymmetricKey and an Ed25519 keypair.
//
// Secret material lives in memguard enclaves and is only reachable through
// Use (scoped access) or RawKeyMaterial (hazardous copy). The types print as
// redacted placeholders and refuse JSON/text marshalling, so a key that ends
// up in a log line or a response body does not leak its bytes.
package keys
