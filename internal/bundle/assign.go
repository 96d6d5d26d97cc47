package bundle

import (
	"crypto/sha256"
	"encoding/binary"
)

// Assign maps a caller to one of names. names must already be sorted; Router
// guarantees that for everything it returns.
//
// The mapping is part of the experiment contract and must not change: the
// SHA-256 digest of the caller id's UTF-8 bytes, first 8 bytes read as a
// big-endian uint64, modulo len(names).
func Assign(callerID string, names []string) (string, error) {
	if len(names) == 0 {
		return "", ErrNoModelsAvailable
	}
	return names[bucket(callerID, len(names))], nil
}

func bucket(callerID string, n int) int {
	hash := sha256.Sum256([]byte(callerID))
	return int(binary.BigEndian.Uint64(hash[:8]) % uint64(n))
}
