package dErrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code matches", func(t *testing.T) {
		err := New(CodeParcelNotFound, "parcel AC 0494 not found")
		if !HasCode(err, CodeParcelNotFound) {
			t.Fatalf("expected HasCode to match direct code")
		}
		if HasCode(err, CodeCommuneNotFound) {
			t.Fatalf("did not expect commune_not_found")
		}
	})

	t.Run("wrapped code matches through the chain", func(t *testing.T) {
		inner := New(CodeUnknownLayer, "layer missing")
		outer := Wrap(inner, CodeInternal, "intersection failed")
		if !HasCode(outer, CodeUnknownLayer) {
			t.Fatalf("expected inner code to be found")
		}
		if !HasCode(outer, CodeInternal) {
			t.Fatalf("expected outer code to be found")
		}
	})

	t.Run("plain error carries no code", func(t *testing.T) {
		if HasCode(fmt.Errorf("boom"), CodeInternal) {
			t.Fatalf("plain errors must not match any code")
		}
	})
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeCommuneNotFound, "insee 99999")); got != CodeCommuneNotFound {
		t.Fatalf("expected commune_not_found, got %s", got)
	}
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Fatalf("uncoded errors default to internal, got %s", got)
	}
}

func TestFatal(t *testing.T) {
	for _, code := range []Code{CodeCommuneNotFound, CodeParcelNotFound, CodeInvalidGeometry} {
		if !Fatal(code) {
			t.Fatalf("%s should be fatal", code)
		}
	}
	for _, code := range []Code{CodeUnknownSchema, CodeRegulationLookupFailed, CodeCompositionFailed} {
		if Fatal(code) {
			t.Fatalf("%s should degrade, not abort", code)
		}
	}
}
