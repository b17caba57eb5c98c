package engine

import (
	"strings"
	"testing"
)

func TestHandlerSetterNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, name := range handlerSetters {
		if !strings.HasPrefix(name, "xw_set_") || !strings.HasSuffix(name, "_handler") {
			t.Errorf("setter %q does not follow the shim naming scheme", name)
		}
		if seen[name] {
			t.Errorf("setter %q registered twice", name)
		}
		seen[name] = true
	}
	// every event kind except the two default variants, installed
	// separately by entity expansion policy
	if len(handlerSetters) != 18 {
		t.Fatalf("handlerSetters has %d entries, want 18", len(handlerSetters))
	}
	for _, v := range []string{setDefault, setDefaultExpand} {
		if seen[v] {
			t.Errorf("default variant %q must not be in the unconditional set", v)
		}
	}
}
