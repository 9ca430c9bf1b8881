package shared

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/blake2b"
)

// IdempotencyHeader carries the client supplied request key.
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// ErrIdempotencyMismatch indicates a key reused with a different payload.
var ErrIdempotencyMismatch = fmt.Errorf("%w: idempotency key reused with a different payload", ErrConflict)

// IdempotencyKey extracts the request key from the header. An absent header
// yields an empty key and no error.
func IdempotencyKey(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" {
		return "", nil
	}
	if len(key) > maxIdempotencyKeyLen {
		return "", fmt.Errorf("%w: idempotency key longer than %d characters", ErrValidation, maxIdempotencyKeyLen)
	}
	for _, c := range key {
		if c < 0x21 || c > 0x7e {
			return "", fmt.Errorf("%w: idempotency key must be printable ascii", ErrValidation)
		}
	}
	return key, nil
}

// Fingerprint hashes the canonical parts of a request so a replayed key can be
// checked against the payload it was first used with.
func Fingerprint(parts ...string) string {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IsUniqueViolation reports whether err is a postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
