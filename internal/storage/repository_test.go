package storage

import (
	"context"
	"testing"
)

//
// Register / New
//

// TestNew_UnknownKind verifies the factory lookup failure modes.
func TestNew_UnknownKind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if _, err := New(ctx, Config{}); err == nil {
		t.Fatal("empty kind did not error")
	}
	if _, err := New(ctx, Config{Kind: "no-such-backend"}); err == nil {
		t.Fatal("unknown kind did not error")
	}
}

// TestRegister_Duplicate verifies the fail-fast panic on double
// registration.
func TestRegister_Duplicate(t *testing.T) {
	t.Parallel()

	f := func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil }
	Register("test-dup", f)

	defer func() {
		if recover() == nil {
			t.Fatal("duplicate Register did not panic")
		}
	}()
	Register("test-dup", f)
}

// TestRegister_Invalid verifies the empty-kind and nil-factory panics.
func TestRegister_Invalid(t *testing.T) {
	t.Parallel()

	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s did not panic", name)
			}
		}()
		fn()
	}

	mustPanic("empty kind", func() {
		Register("", func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil })
	})
	mustPanic("nil factory", func() {
		Register("test-nil", nil)
	})
}
