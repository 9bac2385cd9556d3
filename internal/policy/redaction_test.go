package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Reach me at sam@example.com or +1 (555) 123-9876, card 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	if strings.Contains(out, "sam@example.com") || strings.Contains(out, "4242") {
		t.Fatalf("raw PII survived redaction: %q", out)
	}
}

func TestRedactPIINoChange(t *testing.T) {
	out, changed := RedactPII("I went for a walk and felt a bit better today.")
	if changed {
		t.Fatalf("changed = true for clean input")
	}
	if out != "I went for a walk and felt a bit better today." {
		t.Fatalf("clean input mutated: %q", out)
	}
}
