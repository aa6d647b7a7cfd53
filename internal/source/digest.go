package source

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a sha256 content hash used by the watch loop to detect edits.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Combine folds several digests into one; order matters.
func Combine(ds ...Digest) Digest {
	h := sha256.New()
	for _, d := range ds {
		h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
