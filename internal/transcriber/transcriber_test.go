package transcriber

import (
	"errors"
	"fmt"
	"testing"
)

func TestFatal_IsDetectedThroughWrapping(t *testing.T) {
	base := errors.New("credentials revoked")
	err := fmt.Errorf("transcribe chunk 3: %w", Fatal(base))
	if !IsFatal(err) {
		t.Fatal("expected wrapped fatal error to be detected")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected fatal error to unwrap to its cause")
	}
	if IsFatal(base) {
		t.Fatal("plain errors must be recoverable")
	}
	if Fatal(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}
