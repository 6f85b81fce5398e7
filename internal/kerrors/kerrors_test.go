package kerrors

import (
	"errors"
	"testing"
)

func TestConstructors_SetKindAndMessage(t *testing.T) {
	cases := []struct {
		err  *Error
		kind Kind
	}{
		{InvalidArgumentf("bad %s", "input"), InvalidArgument},
		{NotFoundf("missing %s", "key"), NotFound},
		{Conflictf("conflict on %s", "rev"), Conflict},
		{Unavailablef("busy"), Unavailable},
		{IOErrorf("disk full"), IOError},
		{Internalf("boom"), Internal},
	}
	for _, c := range cases {
		if c.err.Kind != c.kind {
			t.Fatalf("expected kind %s, got %s", c.kind, c.err.Kind)
		}
		if c.err.Message == "" {
			t.Fatalf("expected a non-empty message for kind %s", c.kind)
		}
	}
}

func TestAs_ExtractsTypedError(t *testing.T) {
	var err error = NotFoundf("key %s not found", "a")
	typed, ok := As(err)
	if !ok {
		t.Fatalf("expected As to extract a typed error")
	}
	if typed.Kind != NotFound {
		t.Fatalf("expected kind not_found, got %s", typed.Kind)
	}

	if _, ok := As(errors.New("plain")); ok {
		t.Fatalf("expected As to report false for a plain error")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Fatalf("expected empty kind for nil error")
	}
	if KindOf(errors.New("plain")) != Internal {
		t.Fatalf("expected plain errors to default to Internal kind")
	}
	if KindOf(NotFoundf("x")) != NotFound {
		t.Fatalf("expected typed error kind to be preserved")
	}
}
