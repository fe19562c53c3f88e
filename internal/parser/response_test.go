package parser

import (
	"errors"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```\n", `{"a": 1}`},
		{"surrounding whitespace", "  \n{}\n\t", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantKeys   int
		wantErrMal bool
	}{
		{"object", "```json\n{\"0\": {\"0\": [\"leadership\"]}, \"1\": {}}\n```", 2, false},
		{"empty object", "{}", 0, false},
		{"array", `[1, 2]`, 0, true},
		{"string", `"hello"`, 0, true},
		{"null", `null`, 0, true},
		{"prose", "Sure! Here are the signals.", 0, true},
		{"truncated", `{"0": {"0": ["lead`, 0, true},
		{"empty", "```json\n```", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := DecodeObject(tt.in)
			if tt.wantErrMal {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Fatalf("DecodeObject() error = %v, want ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeObject() error = %v", err)
			}
			if len(obj) != tt.wantKeys {
				t.Errorf("DecodeObject() got %d keys, want %d", len(obj), tt.wantKeys)
			}
		})
	}
}
