package account

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr, err := FromKey(pub)
	if err != nil {
		t.Fatalf("from key: %v", err)
	}

	text := addr.String()
	if len(text) != EncodedLen {
		t.Fatalf("expected %d chars, got %d", EncodedLen, len(text))
	}

	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != addr {
		t.Fatalf("expected %s, got %s", addr, parsed)
	}
}

func TestParseRejectsBadChecksum(t *testing.T) {
	var a Address
	a[0] = 7
	text := a.String()

	// change the key part so the trailing checksum no longer matches
	replacement := byte('Z')
	if text[0] == 'Z' {
		replacement = 'Y'
	}
	tampered := string(replacement) + text[1:]

	if _, err := Parse(tampered); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "short", strings.Repeat("1", EncodedLen)}
	for _, c := range cases {
		if _, err := Parse(c); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("expected invalid address for %q, got %v", c, err)
		}
	}
}

func TestFromKeyLength(t *testing.T) {
	if _, err := FromKey(make([]byte, 31)); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
}

func TestAddressJSON(t *testing.T) {
	var a Address
	a[31] = 1
	payload, err := json.Marshal(struct {
		Account Address `json:"account"`
	}{a})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Account Address `json:"account"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Account != a {
		t.Fatalf("expected %s, got %s", a, decoded.Account)
	}
}
