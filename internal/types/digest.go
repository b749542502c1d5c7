package types

import (
	"crypto/md5"
	"encoding/hex"
)

// DigestSize is the length of a Digest in bytes
const DigestSize = md5.Size

// Digest is a 128-bit content fingerprint
type Digest [DigestSize]byte

// Sum computes the digest of data. It allocates no shared hasher and is safe
// for concurrent use.
func Sum(data []byte) Digest {
	return Digest(md5.Sum(data))
}

// String returns the hex encoding of the digest
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}
