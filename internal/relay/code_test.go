package relay_test

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/liverelay/liverelay/internal/relay"
)

// TestGenerateCodeShape verifies that every generated code is exactly six
// uppercase letters, regardless of how many are drawn.
func TestGenerateCodeShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(t, "n")
		for i := 0; i < n; i++ {
			code := relay.GenerateCode()
			if len(code) != 6 {
				t.Fatalf("expected 6-character code, got %q (len %d)", code, len(code))
			}
			for _, r := range code {
				if r < 'A' || r > 'Z' {
					t.Fatalf("code %q contains non-uppercase character %q", code, r)
				}
			}
		}
	})
}

// TestGenerateCodeVariesPerPosition draws many codes and checks that each
// position takes more than one value, guarding against a generator that is
// accidentally constant in some position.
func TestGenerateCodeVariesPerPosition(t *testing.T) {
	seen := make([]map[byte]struct{}, 6)
	for i := range seen {
		seen[i] = make(map[byte]struct{})
	}

	for i := 0; i < 2000; i++ {
		code := relay.GenerateCode()
		for pos := 0; pos < len(code); pos++ {
			seen[pos][code[pos]] = struct{}{}
		}
	}

	for pos, values := range seen {
		if len(values) < 2 {
			t.Errorf("position %d only ever produced %d distinct letter(s)", pos, len(values))
		}
	}
}

// TestFormatHistoryEntry verifies the rendered history line with and without
// a display name.
func TestFormatHistoryEntry(t *testing.T) {
	tests := []struct {
		name     string
		username string
		text     string
		want     string
	}{
		{"with username", "Alice", "hi", "<strong>Alice</strong>: hi"},
		{"without username", "", "hello there", "hello there"},
		{"username with markup", "<i>x</i>", "y", "<strong><i>x</i></strong>: y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := relay.FormatHistoryEntry(tt.username, tt.text)
			if got != tt.want {
				t.Errorf("FormatHistoryEntry(%q, %q) = %q, want %q", tt.username, tt.text, got, tt.want)
			}
		})
	}
}

// TestEncodeEnvelope verifies the outbound frame shape.
func TestEncodeEnvelope(t *testing.T) {
	frame, err := relay.EncodeEnvelope(relay.EventRoomCreated, "ABCDEF")
	if err != nil {
		t.Fatalf("EncodeEnvelope returned error: %v", err)
	}

	got := string(frame)
	if !strings.Contains(got, `"event":"roomCreated"`) || !strings.Contains(got, `"data":"ABCDEF"`) {
		t.Errorf("unexpected frame: %s", got)
	}
}
