package services

import (
	"errors"
	"testing"
)

func TestWrapTagsMarkerAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrAdaptor, "ingest", "extract_pages", "cannot stage archive", cause)

	if !errors.Is(err, ErrAdaptor) {
		t.Error("wrapped error does not match its marker")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error does not match its cause")
	}
	want := "adaptor failure: ingest: extract_pages: cannot stage archive: disk full"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "scrape", "fetch_volume", "timeout", nil)
	if !errors.Is(err, ErrTransient) {
		t.Error("nil marker should default to transient")
	}
}

func TestIsRecoverable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"adaptor", Wrap(ErrAdaptor, "ingest", "open", "bad archive", nil), true},
		{"transient", Wrap(ErrTransient, "scrape", "fetch", "timeout", nil), true},
		{"unclassified", errors.New("unexpected"), true},
		{"validation", Wrap(ErrValidation, "ingest", "check", "no pages", nil), false},
		{"configuration", Wrap(ErrConfiguration, "organize", "rule", "bad template", nil), false},
		{"not found", Wrap(ErrNotFound, "library", "get", "missing comic", nil), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRecoverable(tc.err); got != tc.want {
				t.Errorf("IsRecoverable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
