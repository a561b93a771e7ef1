package enrich

import (
	"fmt"
	"testing"
)

func TestHotQueryHits_CapsKeys(t *testing.T) {
	h := NewHotQueryHits()
	for i := range maxHotKeys {
		h.Increment(fmt.Sprintf("key-%d", i))
	}
	h.Increment("overflow")
	h.Increment("key-0")

	if h.Len() != maxHotKeys {
		t.Errorf("Len = %d, want %d", h.Len(), maxHotKeys)
	}
	if got := h.Get("overflow"); got != 0 {
		t.Errorf("overflow count = %d, want 0", got)
	}
	if got := h.Get("key-0"); got != 2 {
		t.Errorf("key-0 count = %d, want 2", got)
	}

	h.Reset()
	if h.Len() != 0 {
		t.Errorf("Len after Reset = %d", h.Len())
	}
}
