package idempotency

import (
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Derive maps a client request id and a role to a stable message client id,
// so both halves of a retried turn land on the rows written the first time.
func Derive(requestId, role string) string {
	sum := blake2b.Sum256([]byte(requestId + "|" + role))
	return hex.EncodeToString(sum[:16])
}

// Fresh returns a random client id for writers that did not supply a request id.
func Fresh() string {
	return uuid.NewString()
}
