// Package digest is the hash provider used by the MAC, HKDF and key schedule
// packages.
//
// Which algorithms exist at run time is decided by a [Registry], a table
// built from configuration that binds every enabled [Algorithm] to the first
// [Driver] in a preference list that implements it. Three drivers are
// available: the standard library with golang.org/x/crypto, the hash
// functions of github.com/flynn/noise, and github.com/zeebo/blake3.
//
// Multipart computations go through [Operation], whose active state is one
// concrete type per driver, so the driver tag and the context it describes
// cannot disagree. The lifecycle rules are:
//
//   - Setup on an active operation fails with ErrBadState
//   - Update, Finish and Clone on an inactive operation fail with ErrBadState
//   - Finish always ends the operation, and reports ErrBufferTooSmall for a
//     short output after filling it with '!'
//   - Abort on an inactive operation does nothing
package digest
