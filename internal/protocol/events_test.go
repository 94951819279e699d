package protocol

import (
	"errors"
	"testing"
)

func TestEncodeToken(t *testing.T) {
	raw, err := Token("Hel").Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got, want := string(raw), `{"type":"token","content":"Hel"}`; got != want {
		t.Fatalf("Encode() = %s, want %s", got, want)
	}
}

func TestEncodeDoneOmitsPayload(t *testing.T) {
	raw, err := Done().Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got, want := string(raw), `{"type":"done"}`; got != want {
		t.Fatalf("Encode() = %s, want %s", got, want)
	}
}

func TestParseStreamEvent(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    StreamEvent
		wantErr bool
	}{
		{"token", `{"type":"token","content":" world"}`, Token(" world"), false},
		{"done", `{"type":"done"}`, Done(), false},
		{"error", `{"type":"error","message":"session expired"}`, Error("session expired"), false},
		{"error without message", `{"type":"error"}`, StreamEvent{}, true},
		{"done with payload", `{"type":"done","content":"x"}`, StreamEvent{}, true},
		{"unknown type", `{"type":"ping"}`, StreamEvent{}, true},
		{"garbage", `not-json`, StreamEvent{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseStreamEvent([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseStreamEvent(%q) expected error", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStreamEvent(%q) error = %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("ParseStreamEvent(%q) = %+v, want %+v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestParseUnknownTypeSentinel(t *testing.T) {
	_, err := ParseStreamEvent([]byte(`{"type":"audio"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestTerminal(t *testing.T) {
	if Token("x").Terminal() {
		t.Fatalf("token should not be terminal")
	}
	if !Done().Terminal() || !Error("boom").Terminal() {
		t.Fatalf("done and error should be terminal")
	}
}
