package inspector

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// contentDigest is the 4-byte SHAKE128 digest the engine records in
// value-deps-hashes for unpinned, unversioned dependencies.
func contentDigest(content []byte) string {
	var sum [4]byte
	sha3.ShakeSum128(sum[:], content)
	return hex.EncodeToString(sum[:])
}

// shortCommit truncates a commit id to its 8-character short form, the
// width the engine records on every advanced pin.
func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
