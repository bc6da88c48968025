package testutils

import (
	"testing"

	"github.com/miremote/mi-ir-extract/internal/crypt"
	"github.com/miremote/mi-ir-extract/internal/pattern"
)

// Blob returns the vendor blob carrying timing, encrypted with the built-in key.
func Blob(t *testing.T, timing ...uint32) string {
	t.Helper()
	return crypt.Encrypt(pattern.EncodeTimings(timing))
}
