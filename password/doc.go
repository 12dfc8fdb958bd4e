// Package password hashes and verifies passwords with Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// [Hasher.NeedsRehash] reports digests made with weaker parameters so a caller can
// re-hash after the next successful login.
//
// This package does not store passwords and never logs plaintext.
package password
