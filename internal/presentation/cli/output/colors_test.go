package output

import (
	"os"
	"testing"
)

func TestDetectColorSupport(t *testing.T) {
	origNoColor, hadNoColor := os.LookupEnv("NO_COLOR")
	origForceColor, hadForceColor := os.LookupEnv("FORCE_COLOR")
	origTerm := os.Getenv("TERM")
	defer func() {
		restoreEnv("NO_COLOR", origNoColor, hadNoColor)
		restoreEnv("FORCE_COLOR", origForceColor, hadForceColor)
		os.Setenv("TERM", origTerm)
		ResetColorDetection()
	}()

	tests := []struct {
		name       string
		noColor    string
		forceColor string
		term       string
		want       bool
	}{
		{name: "NO_COLOR set", noColor: "1", term: "xterm-256color", want: false},
		{name: "FORCE_COLOR overrides", forceColor: "1", term: "", want: true},
		{name: "NO_COLOR beats FORCE_COLOR", noColor: "1", forceColor: "1", want: false},
		{name: "TERM dumb", term: "dumb", want: false},
		{name: "TERM empty", term: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetColorDetection()
			os.Unsetenv("NO_COLOR")
			os.Unsetenv("FORCE_COLOR")
			if tt.noColor != "" {
				os.Setenv("NO_COLOR", tt.noColor)
			}
			if tt.forceColor != "" {
				os.Setenv("FORCE_COLOR", tt.forceColor)
			}
			os.Setenv("TERM", tt.term)

			if got := IsColorSupported(); got != tt.want {
				t.Errorf("IsColorSupported() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsColorSupportedCaches(t *testing.T) {
	defer ResetColorDetection()

	ResetColorDetection()
	first := IsColorSupported()
	if colorsEnabled == nil {
		t.Fatal("detection result not cached")
	}
	if second := IsColorSupported(); second != first {
		t.Errorf("cached result changed: %v then %v", first, second)
	}
}

func restoreEnv(key, value string, had bool) {
	if had {
		os.Setenv(key, value)
	} else {
		os.Unsetenv(key)
	}
}
