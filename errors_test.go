package kestrel

import (
	"errors"
	"testing"
)

func TestEngineErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(KindExecution, "RunSystem", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to see through EngineError to its cause")
	}
	if err.Kind != KindExecution {
		t.Fatalf("expected Kind=KindExecution, got %v", err.Kind)
	}
}

func TestEngineErrorMessageWithoutCause(t *testing.T) {
	err := NewError(KindScheduling, "AddSystem", nil)
	if got, want := err.Error(), "kestrel: scheduling: AddSystem"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEngineErrorMessageWithCause(t *testing.T) {
	err := NewError(KindStructural, "AddComponent", errors.New("invalid entity"))
	if got, want := err.Error(), "kestrel: structural: AddComponent: invalid entity"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestErrorKindString(t *testing.T) {
	cases := map[ErrorKind]string{
		KindStructural:  "structural",
		KindScheduling:  "scheduling",
		KindExecution:   "execution",
		KindFatal:       "fatal",
		ErrorKind(99):   "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
