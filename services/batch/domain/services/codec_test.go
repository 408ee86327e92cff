package services

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	batchdomain "github.com/ghuser/agritrack/services/batch/domain"
	"github.com/ghuser/agritrack/services/batch/domain/models"
)

func mustMint(t *testing.T) models.Identifier {
	t.Helper()
	id, err := Mint(time.Now())
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return id
}

func TestMint(t *testing.T) {
	t.Run("has prefix and fixed length", func(t *testing.T) {
		id := mustMint(t)
		if !strings.HasPrefix(id.String(), models.IdentifierPrefix) {
			t.Fatalf("expected %s prefix, got %q", models.IdentifierPrefix, id)
		}
		if len(id) != idLength {
			t.Fatalf("expected length %d, got %d", idLength, len(id))
		}
		if err := ValidateIdentifier(id); err != nil {
			t.Fatalf("minted identifier failed validation: %v", err)
		}
	})

	t.Run("generates unique identifiers", func(t *testing.T) {
		seen := make(map[models.Identifier]struct{}, 1000)
		now := time.Now()
		for i := 0; i < 1000; i++ {
			id, err := Mint(now)
			if err != nil {
				t.Fatalf("Mint: %v", err)
			}
			if _, dup := seen[id]; dup {
				t.Fatalf("duplicate identifier %q", id)
			}
			seen[id] = struct{}{}
		}
	})

	t.Run("sorts by mint time", func(t *testing.T) {
		early, _ := Mint(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		late, _ := Mint(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		if early >= late {
			t.Fatalf("expected %q < %q", early, late)
		}
	})
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := mustMint(t)
		payload := Encode(id)
		got, err := Decode(payload)
		if err != nil {
			t.Fatalf("Decode(%q): %v", payload, err)
		}
		if got != id {
			t.Fatalf("round trip: got %q, want %q", got, id)
		}
	}
}

func TestEncode_PayloadIsPathSafe(t *testing.T) {
	id := mustMint(t)
	payload := Encode(id)
	if len(payload) != payloadLength {
		t.Fatalf("expected payload length %d, got %d", payloadLength, len(payload))
	}
	if url.PathEscape(payload) != payload {
		t.Fatalf("payload %q needs escaping in a path segment", payload)
	}
	for _, r := range payload {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r == '-') {
			t.Fatalf("payload %q contains %q", payload, r)
		}
	}
}

func TestDecode_AcceptedForms(t *testing.T) {
	id := mustMint(t)
	payload := Encode(id)

	tests := []struct {
		name  string
		input string
	}{
		{"payload", payload},
		{"lower case payload", strings.ToLower(payload)},
		{"bare identifier", id.String()},
		{"verify url", VerifyURL("https://agritrack.app", id)},
		{"verify url with trailing slash base", VerifyURL("https://agritrack.app/", id)},
		{"verify url with query", VerifyURL("https://agritrack.app", id) + "?src=label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input)
			if err != nil {
				t.Fatalf("Decode(%q): %v", tt.input, err)
			}
			if got != id {
				t.Fatalf("got %q, want %q", got, id)
			}
		})
	}
}

func TestDecode_CrockfordAliases(t *testing.T) {
	id := models.Identifier("BTC01ARZ3NDEKTSV4RRFFQ69G5FAV")
	payload := Encode(id)
	aliased := strings.NewReplacer("0", "O", "1", "l").Replace(strings.TrimPrefix(payload, PayloadPrefix))

	got, err := Decode(PayloadPrefix + aliased)
	if err != nil {
		t.Fatalf("Decode aliased: %v", err)
	}
	if got != id {
		t.Fatalf("got %q, want %q", got, id)
	}
}

func TestDecode_Malformed(t *testing.T) {
	id := mustMint(t)
	payload := Encode(id)
	wrongCheck := payload[:len(payload)-1] + string(otherSymbol(payload[len(payload)-1]))

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "hello world"},
		{"too long", strings.Repeat("A", maxInputLen+1)},
		{"prefix only", PayloadPrefix},
		{"wrong check symbol", wrongCheck},
		{"missing check symbol", strings.TrimSuffix(payload, payload[len(payload)-2:])},
		{"invalid symbol U", models.IdentifierPrefix + strings.Repeat("U", ulidLength)},
		{"overflowing identifier", models.IdentifierPrefix + "8" + strings.Repeat("0", ulidLength-1)},
		{"wrong prefix", "XYZ" + id.String()[len(models.IdentifierPrefix):]},
		{"embedded whitespace", payload[:10] + " " + payload[10:]},
		{"control character", payload + "\x00"},
		{"non ascii", "BTC" + strings.Repeat("é", 13)},
		{"url without payload", "https://agritrack.app/verify/"},
		{"broken url", "http://[::1/verify"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			if !errors.Is(err, batchdomain.ErrMalformedIdentifier) {
				t.Fatalf("Decode(%q): expected ErrMalformedIdentifier, got %v", tt.input, err)
			}
		})
	}
}

func TestVerifyURL(t *testing.T) {
	id := models.Identifier("BTC01ARZ3NDEKTSV4RRFFQ69G5FAV")
	got := VerifyURL("https://agritrack.app/", id)
	want := "https://agritrack.app/verify/" + Encode(id)
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func FuzzDecode(f *testing.F) {
	f.Add("AGT1-BTC01ARZ3NDEKTSV4RRFFQ69G5FAV-0")
	f.Add("https://agritrack.app/verify/x")
	f.Add("")
	f.Fuzz(func(t *testing.T, s string) {
		id, err := Decode(s)
		if err != nil {
			if !errors.Is(err, batchdomain.ErrMalformedIdentifier) {
				t.Fatalf("unexpected error type: %v", err)
			}
			return
		}
		if vErr := ValidateIdentifier(id); vErr != nil {
			t.Fatalf("decoded invalid identifier %q: %v", id, vErr)
		}
	})
}

func otherSymbol(c byte) byte {
	if c == '0' {
		return '1'
	}
	return '0'
}
