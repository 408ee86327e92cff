// Package services contains stateless domain services for the batch bounded
// context: the identifier codec, the stage transition engine and the input
// validation rules. They operate purely on domain types.
package services

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid"

	batchdomain "github.com/ghuser/agritrack/services/batch/domain"
	"github.com/ghuser/agritrack/services/batch/domain/models"
)

const (
	// PayloadPrefix tags version 1 of the scannable payload format.
	PayloadPrefix = "AGT1-"

	crockford     = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	ulidLength    = 26
	idLength      = len(models.IdentifierPrefix) + ulidLength
	payloadLength = len(PayloadPrefix) + idLength + 2
	maxInputLen   = 512
)

// Mint returns a new identifier: the batch prefix followed by a ULID whose
// time component is now. Uniqueness is only probabilistic here; the store
// rejects duplicates and the caller mints again.
func Mint(now time.Time) (models.Identifier, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("mint identifier: %w", err)
	}
	return models.Identifier(models.IdentifierPrefix + id.String()), nil
}

// Encode returns the payload embedded in a batch's scannable code:
// "AGT1-<identifier>-<check symbol>". The payload only uses [0-9A-Z-].
func Encode(id models.Identifier) string {
	return PayloadPrefix + id.String() + "-" + string(checkSymbol(id.String()))
}

// VerifyURL returns the consumer-facing URL that resolves id.
func VerifyURL(baseURL string, id models.Identifier) string {
	return strings.TrimRight(baseURL, "/") + "/verify/" + Encode(id)
}

// Decode parses an encoded payload back into an identifier. It also accepts a
// bare identifier or a verify URL whose last path segment is a payload.
// Lower case and the Crockford aliases I, L (1) and O (0) are tolerated.
// Any other input fails with ErrMalformedIdentifier.
func Decode(payload string) (models.Identifier, error) {
	if payload == "" || len(payload) > maxInputLen {
		return "", malformed("payload length %d out of range", len(payload))
	}

	s := payload
	if strings.Contains(s, "/") {
		u, err := url.Parse(s)
		if err != nil {
			return "", malformed("invalid verify url")
		}
		s = path.Base(u.Path)
	}
	s = normaliseSymbols(s)

	if !strings.HasPrefix(s, PayloadPrefix) {
		if err := validateIdentifier(s); err != nil {
			return "", err
		}
		return models.Identifier(s), nil
	}

	if len(s) != payloadLength || s[payloadLength-2] != '-' {
		return "", malformed("payload must be %s<identifier>-<check>", PayloadPrefix)
	}
	id := s[len(PayloadPrefix) : len(PayloadPrefix)+idLength]
	if err := validateIdentifier(id); err != nil {
		return "", err
	}
	if s[payloadLength-1] != checkSymbol(id) {
		return "", malformed("check symbol mismatch")
	}
	return models.Identifier(id), nil
}

// ValidateIdentifier reports whether id has the shape Mint produces.
func ValidateIdentifier(id models.Identifier) error {
	return validateIdentifier(id.String())
}

func validateIdentifier(s string) error {
	if len(s) != idLength || !strings.HasPrefix(s, models.IdentifierPrefix) {
		return malformed("identifier must be %s followed by %d symbols", models.IdentifierPrefix, ulidLength)
	}
	body := s[len(models.IdentifierPrefix):]
	for i := 0; i < len(body); i++ {
		if strings.IndexByte(crockford, body[i]) < 0 {
			return malformed("invalid symbol %q", body[i])
		}
	}
	// A 26-symbol ULID encodes 130 bits; the top symbol may only carry 3.
	if body[0] > '7' {
		return malformed("identifier overflows 128 bits")
	}
	return nil
}

// checkSymbol is a position-weighted mod-32 checksum. Adjacent
// transpositions always change it.
func checkSymbol(id string) byte {
	sum := 0
	for i := 0; i < len(id); i++ {
		v := strings.IndexByte(crockford, id[i])
		if v < 0 {
			v = int(id[i])
		}
		sum += (i + 1) * v
	}
	return crockford[sum%len(crockford)]
}

func normaliseSymbols(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case 'I', 'i', 'L', 'l':
			return '1'
		case 'O', 'o':
			return '0'
		}
		if r >= 'a' && r <= 'z' {
			return r - 'a' + 'A'
		}
		return r
	}, s)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", batchdomain.ErrMalformedIdentifier, fmt.Sprintf(format, args...))
}
