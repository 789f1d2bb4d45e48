package invariant_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aledsdavies/gounit/core/invariant"
)

func expectPanic(t *testing.T, kind, message string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected %s panic", kind)
		}
		msg := fmt.Sprintf("%v", r)
		if !strings.Contains(msg, kind+" VIOLATION") {
			t.Errorf("expected %s VIOLATION, got: %s", kind, msg)
		}
		if !strings.Contains(msg, message) {
			t.Errorf("expected message %q, got: %s", message, msg)
		}
		if !strings.Contains(msg, "at ") {
			t.Errorf("expected call site, got: %s", msg)
		}
	}()
	fn()
}

func TestPassingAssertionsDoNotPanic(t *testing.T) {
	invariant.Precondition(true, "never shown")
	invariant.Postcondition(len("describe") == 8, "never shown")
	invariant.Invariant(1 < 2, "never shown")
	invariant.NotNil(&struct{}{}, "value")
}

func TestPreconditionFail(t *testing.T) {
	expectPanic(t, "PRECONDITION", "root scope must be named", func() {
		invariant.Precondition(false, "root scope must be named")
	})
}

func TestPostconditionFail(t *testing.T) {
	expectPanic(t, "POSTCONDITION", "got 0 tests", func() {
		invariant.Postcondition(false, "got %d tests", 0)
	})
}

func TestInvariantFail(t *testing.T) {
	expectPanic(t, "INVARIANT", "position must advance", func() {
		invariant.Invariant(false, "position must advance")
	})
}

func TestNotNilTypedNil(t *testing.T) {
	var p *int
	expectPanic(t, "PRECONDITION", "root must not be nil", func() {
		invariant.NotNil(p, "root")
	})
	expectPanic(t, "PRECONDITION", "opts must not be nil", func() {
		invariant.NotNil(nil, "opts")
	})
}
