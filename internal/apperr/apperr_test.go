package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindMatchingWithIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"validation matches sentinel", Validation("missing domain"), ErrValidation, true},
		{"not found matches sentinel", NotFound("server not found"), ErrNotFound, true},
		{"kinds do not cross-match", Validation("x"), ErrNotFound, false},
		{"wrapped cause still matches", fmt.Errorf("prepare: %w", NotFound("template")), ErrNotFound, true},
		{"connection wrapping foreign error", Connection("dial", errors.New("refused")), ErrConnection, true},
		{"foreign error never matches", errors.New("plain"), ErrValidation, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), 400},
		{NotFound("gone"), 404},
		{Connection("dial", nil), 502},
		{Command("run", nil), 502},
		{Transfer("upload", nil), 502},
		{Resolution("no server"), 500},
		{NotConnected("run"), 409},
		{errors.New("unknown"), 500},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestErrorStringIncludesDomainAndCause(t *testing.T) {
	err := &Error{Kind: KindCommand, Message: "script failed", Domain: "example.com", Err: errors.New("broken pipe")}
	want := "example.com: script failed: broken pipe"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
