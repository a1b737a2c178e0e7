package clipboard

import (
	"errors"
	"testing"
)

func TestWrite(t *testing.T) {
	// Needs a desktop session; headless runners report ErrUnavailable.
	err := Write("안녕")
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("Expected ErrUnavailable, got %v", err)
		}
		t.Logf("Clipboard not available: %v", err)
		return
	}
	got, err := Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != "안녕" {
		t.Logf("Clipboard returned %q (another process may own it)", got)
	}
}
