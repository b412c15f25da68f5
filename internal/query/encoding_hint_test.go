package query

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIsEncodingError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"unrelated error", errors.New("connection refused"), false},
		{"parquet encoding error", errors.New("Invalid string encoding found in Parquet file"), true},
		{"wrapped parquet error", fmt.Errorf("fetch: %w", errors.New("scan: Invalid string encoding found in Parquet file foo.parquet")), true},
		{"csv encoding error", errors.New("Invalid Input Error: CSV Error on Line: 3\nInvalid unicode (byte sequence mismatch) detected."), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEncodingError(tt.err); got != tt.want {
				t.Errorf("IsEncodingError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHintEncoding(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if got := HintEncoding(nil); got != nil {
			t.Errorf("HintEncoding(nil) = %v, want nil", got)
		}
	})

	t.Run("unrelated error passes through", func(t *testing.T) {
		orig := errors.New("something else")
		if got := HintEncoding(orig); got != orig {
			t.Errorf("HintEncoding should return original error unchanged, got %v", got)
		}
	})

	tests := []struct {
		name string
		msg  string
		hint string
	}{
		{"csv", "Invalid unicode (byte sequence mismatch) detected", "csv_resident_max_bytes"},
		{"parquet", "Invalid string encoding found in Parquet file", "rewrite it with UTF-8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := errors.New(tt.msg)
			got := HintEncoding(orig)
			if !strings.Contains(got.Error(), tt.hint) {
				t.Errorf("expected hint containing %q, got: %s", tt.hint, got)
			}
			if !errors.Is(got, orig) {
				t.Error("wrapped error should preserve original via errors.Is")
			}
		})
	}
}
