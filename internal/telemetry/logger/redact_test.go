package logger

import (
	"log/slog"
	"testing"
)

func TestRedactSensitive(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"password key", slog.String("password", "hunter22"), redactedValue},
		{"token key", slog.String("token", "abcdef"), redactedValue},
		{"nested key", slog.String("encryption_key", "k"), redactedValue},
		{"authorization header", slog.String("Authorization", "x"), redactedValue},
		{"empty value kept", slog.String("password", ""), ""},
		{"plain key kept", slog.String("user_id", "u-1"), "u-1"},
		{"bearer value masked", slog.String("header", "Bearer abcdefghijkl"), "Bearer abc...jkl"},
		{"sealed value masked", slog.String("raw", "v1.aes-gcm.QUJDREVGR0hJSg"), "v1.aes-gcm.QUJ...JSg"},
		{"short sealed", slog.String("raw", "v1.aes-gcm.ab"), "v1.aes-gcm.***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactSensitive(tt.attr)
			if got.Value.String() != tt.want {
				t.Errorf("redactSensitive() = %q, want %q", got.Value.String(), tt.want)
			}
		})
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	a := slog.Group("req", slog.String("password", "p"), slog.String("email", "a@b.co"))
	got := redactSensitive(a).Value.Group()
	if got[0].Value.String() != redactedValue {
		t.Error("nested password not redacted")
	}
	if got[1].Value.String() != "a@b.co" {
		t.Error("nested email should be kept")
	}
}

func TestRedactToken(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"short":            "***",
		"abcdefghijklmnop": "abcd...mnop",
	}
	for in, want := range tests {
		if got := RedactToken(in); got != want {
			t.Errorf("RedactToken(%q) = %q, want %q", in, got, want)
		}
	}
}
