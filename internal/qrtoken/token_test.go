package qrtoken

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedCodec(secret string, at time.Time) *Codec {
	return New(secret, DefaultMaxAge, WithClock(func() time.Time { return at }))
}

func TestIssueDecodeRoundTrip(t *testing.T) {
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := fixedCodec("", issued)

	tok, p, err := c.Issue(42, ActionEntry, "")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if p.UserID != 42 || p.Action != ActionEntry || p.IssuedAt != issued.UnixMilli() {
		t.Fatalf("Issue() payload = %+v", p)
	}

	got, err := c.Decode(tok)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != p {
		t.Errorf("Decode() = %+v, want %+v", got, p)
	}
}

func TestDecodeMalformed(t *testing.T) {
	c := New("", 0)

	valid, _, err := c.Issue(7, ActionExit, "")
	if err != nil {
		t.Fatal(err)
	}

	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "whitespace", token: "   "},
		{name: "not base64", token: "!!!not-base64!!!"},
		{name: "not json", token: enc("hello")},
		{name: "missing user", token: enc(`{"timestamp":1234,"action":"entry"}`)},
		{name: "missing timestamp", token: enc(`{"userId":"7","action":"entry"}`)},
		{name: "missing action", token: enc(`{"userId":"7","timestamp":1234}`)},
		{name: "zero user", token: enc(`{"userId":"0","timestamp":1234,"action":"entry"}`)},
		{name: "non-numeric user", token: enc(`{"userId":"abc","timestamp":1234,"action":"entry"}`)},
		{name: "zero timestamp", token: enc(`{"userId":"7","timestamp":0,"action":"entry"}`)},
		{name: "negative timestamp", token: enc(`{"userId":"7","timestamp":-5,"action":"entry"}`)},
		{name: "unknown action", token: enc(`{"userId":"7","timestamp":1234,"action":"dance"}`)},
		{name: "truncated", token: valid[:len(valid)/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Decode(tt.token); !errors.Is(err, ErrTokenMalformed) {
				t.Errorf("Decode(%q) error = %v, want ErrTokenMalformed", tt.token, err)
			}
		})
	}

	// A configured secret does not reclassify garbage: unparseable input
	// stays malformed, never forged.
	signed := New("topsecret", 0)
	for _, tok := range []string{"not-a-token", enc("hello"), "!!!not-base64!!!"} {
		if _, err := signed.Decode(tok); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("signed Decode(%q) error = %v, want ErrTokenMalformed", tok, err)
		}
	}
}

func TestDecodeSignature(t *testing.T) {
	signer := New("topsecret", 0)
	tok, _, err := signer.Issue(9, ActionReward, "salt-1")
	if err != nil {
		t.Fatal(err)
	}

	// The signed token round-trips through the same codec.
	if _, err := signer.Decode(tok); err != nil {
		t.Fatalf("Decode(signed) error = %v", err)
	}

	// Unsigned token rejected when a secret is configured.
	unsigned, _, err := New("", 0).Issue(9, ActionReward, "salt-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := signer.Decode(unsigned); !errors.Is(err, ErrTokenForged) {
		t.Errorf("Decode(unsigned) error = %v, want ErrTokenForged", err)
	}

	// Tampered signature rejected.
	body, _, _ := strings.Cut(tok, ".")
	if _, err := signer.Decode(body + ".AAAA"); !errors.Is(err, ErrTokenForged) {
		t.Errorf("Decode(tampered sig) error = %v, want ErrTokenForged", err)
	}

	// Different secret rejected.
	other := New("othersecret", 0)
	if _, err := other.Decode(tok); !errors.Is(err, ErrTokenForged) {
		t.Errorf("Decode(wrong secret) error = %v, want ErrTokenForged", err)
	}
}

func TestIsLiveBoundaries(t *testing.T) {
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := fixedCodec("", issued)
	_, p, err := c.Issue(1, ActionEntry, "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "at issuance", at: issued, want: true},
		{name: "one ms before expiry", at: issued.Add(5*time.Minute - time.Millisecond), want: true},
		{name: "exactly at expiry", at: issued.Add(5 * time.Minute), want: false},
		{name: "one ms after expiry", at: issued.Add(5*time.Minute + time.Millisecond), want: false},
		{name: "well expired", at: issued.Add(time.Hour), want: false},
		{name: "issued in the future", at: issued.Add(-time.Second), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fixedCodec("", tt.at)
			if got := c.IsLive(p); got != tt.want {
				t.Errorf("IsLive() at %s = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	c := New("", 0)
	if _, _, err := c.Issue(0, ActionEntry, ""); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("Issue(user 0) error = %v, want ErrTokenMalformed", err)
	}
	if _, _, err := c.Issue(1, Action("dance"), ""); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("Issue(bad action) error = %v, want ErrTokenMalformed", err)
	}
}

func TestRewardSaltSurvivesRoundTrip(t *testing.T) {
	c := New("s", 0)
	tok, _, err := c.Issue(5, ActionReward, "abc-123")
	if err != nil {
		t.Fatal(err)
	}
	p, err := c.Decode(tok)
	if err != nil {
		t.Fatal(err)
	}
	if p.SessionID != "abc-123" {
		t.Errorf("SessionID = %q, want %q", p.SessionID, "abc-123")
	}
}
