package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestResolveError_Error(t *testing.T) {
	tests := []struct {
		name string
		kind error
		path string
		err  error
		want string
	}{
		{
			name: "kind only",
			kind: ErrAccessDenied,
			want: "access denied",
		},
		{
			name: "with path",
			kind: ErrResourceMissing,
			path: "assets/logo.png",
			want: "resource missing (assets/logo.png)",
		},
		{
			name: "with path and cause",
			kind: ErrInternalFault,
			path: "home",
			err:  errors.New("disk on fire"),
			want: "internal fault (home): disk on fire",
		},
		{
			name: "nil kind defaults to internal fault",
			kind: nil,
			want: "internal fault",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := NewResolveError(tt.kind, tt.path, tt.err)
			if got := re.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveError_Unwrap(t *testing.T) {
	re := NewResolveError(ErrResourceMissing, "home", fs.ErrNotExist)

	if !errors.Is(re, ErrResourceMissing) {
		t.Error("errors.Is(re, ErrResourceMissing) = false, want true")
	}
	if !errors.Is(re, fs.ErrNotExist) {
		t.Error("errors.Is(re, fs.ErrNotExist) = false, want true")
	}
	if errors.Is(re, ErrAccessDenied) {
		t.Error("errors.Is(re, ErrAccessDenied) = true, want false")
	}

	var target *ResolveError
	wrapped := fmt.Errorf("resolve: %w", re)
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As() failed to extract ResolveError")
	}
	if target.Path != "home" {
		t.Errorf("Path = %q, want %q", target.Path, "home")
	}
}

func TestResolveKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"input rejected", NewResolveError(ErrInputRejected, "", nil), ErrInputRejected},
		{"access denied wrapped", fmt.Errorf("policy: %w", ErrAccessDenied), ErrAccessDenied},
		{"sandbox escape", NewResolveError(ErrSandboxEscape, "assets/x", nil), ErrSandboxEscape},
		{"missing", NewResolveError(ErrResourceMissing, "x", fs.ErrNotExist), ErrResourceMissing},
		{"unknown error", errors.New("boom"), ErrInternalFault},
		{"nil error", nil, ErrInternalFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveKind(tt.err); got != tt.want {
				t.Errorf("ResolveKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSecurityRelevant(t *testing.T) {
	if !IsSecurityRelevant(NewResolveError(ErrSandboxEscape, "assets/link", nil)) {
		t.Error("sandbox escape should be security relevant")
	}
	if IsSecurityRelevant(NewResolveError(ErrAccessDenied, "secret", nil)) {
		t.Error("policy denial should not be security relevant")
	}
}
