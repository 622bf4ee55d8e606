package config

import (
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("LOCATOR_TEST_HOST", "db.internal")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{"plain", "localhost:6379", "localhost:6379", ""},
		{"braced", "postgres://${LOCATOR_TEST_HOST}/fixes", "postgres://db.internal/fixes", ""},
		{"bare", "$LOCATOR_TEST_HOST:5432", "db.internal:5432", ""},
		{"escape", "pa$$word", "pa$word", ""},
		{"missing", "${LOCATOR_TEST_NOPE_B} ${LOCATOR_TEST_NOPE_A}", "", "LOCATOR_TEST_NOPE_A, LOCATOR_TEST_NOPE_B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.in)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ExpandEnvStrict() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExpandEnvStrict() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandEnvStrict() = %q, want %q", got, tt.want)
			}
		})
	}
}
