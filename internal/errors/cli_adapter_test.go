package errors

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: 0,
		},
		{
			name: "classified validation error",
			err: NewError(CategoryValidation, "invalid input").
				WithSeverity(SeverityError).
				Build(),
			expected: 2,
		},
		{
			name: "classified auth error",
			err: NewError(CategoryAuth, "unauthorized").
				WithSeverity(SeverityError).
				Build(),
			expected: 5,
		},
		{
			name:     "config error",
			err:      ConfigError("bad config").Build(),
			expected: 7,
		},
		{
			name:     "build error",
			err:      BuildError("sdist build failed").Build(),
			expected: 11,
		},
		{
			name:     "index error",
			err:      IndexError("upload rejected").Build(),
			expected: 8,
		},
		{
			name:     "unclassified error",
			err:      &customError{msg: "unknown error"},
			expected: 1,
		},
		{
			name:     "subprocess exit status wins",
			err:      &exitStatusError{code: 3},
			expected: 3,
		},
		{
			name: "wrapped subprocess exit status wins over classification",
			err: WrapError(&exitStatusError{code: 4}, CategoryBuild, "build tool failed").
				Fatal().
				Build(),
			expected: 4,
		},
		{
			name:     "signal-terminated subprocess falls back to general code",
			err:      &exitStatusError{code: -1},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.ExitCodeFor(tt.err)
			if got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		err      error
		contains string
	}{
		{
			name:     "nil error",
			err:      nil,
			contains: "",
		},
		{
			name:     "classified error in non-verbose mode shows message",
			err:      ConfigError("no repository named staging").Build(),
			contains: "no repository named staging",
		},
		{
			name:    "classified error with cause in non-verbose mode",
			err:     WrapError(fmt.Errorf("connect refused"), CategoryNetwork, "upload failed").Build(),
			contains: "upload failed: connect refused",
		},
		{
			name:     "verbose mode shows classification",
			verbose:  true,
			err:      ConfigError("no repository named staging").Build(),
			contains: "[config:fatal]",
		},
		{
			name:     "unclassified error",
			err:      &customError{msg: "unknown error"},
			contains: "Error: unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := NewCLIErrorAdapter(tt.verbose, slog.Default())
			got := adapter.FormatError(tt.err)
			if tt.contains == "" {
				if got != "" {
					t.Errorf("FormatError() = %q, want empty string", got)
				}
				return
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("FormatError() = %q, want to contain %q", got, tt.contains)
			}
		})
	}
}

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}

// exitStatusError mimics exec.ExitError's exit code surface.
type exitStatusError struct {
	code int
}

func (e *exitStatusError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitStatusError) ExitCode() int {
	return e.code
}
