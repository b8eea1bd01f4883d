// Package services implements the gateway core: storage key derivation,
// quota resolution, presigned transfer issuance, multipart upload
// coordination, and streamed bundle assembly.
package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultFileName substitutes for empty or fully rejected filenames.
const DefaultFileName = "file"

// maxFileNameLen caps the sanitized tail of a derived key, bytes.
const maxFileNameLen = 128

// DeriveStorageKey produces a collision-resistant, filesystem-safe storage
// key of the form:
//
//	<prefix>/<yyyy>/<mm>/<dd>/<uuid>/<sanitized-filename>
//
// The caller-supplied filename only ever contributes the sanitized tail, so
// no input can escape the prefix or smuggle path-traversal sequences into
// the key. Uniqueness rests on the UUID segment. Never fails.
func DeriveStorageKey(prefix, filename string) string {
	d := time.Now()
	return fmt.Sprintf("%s/%d/%02d/%02d/%v/%s", prefix, d.Year(), d.Month(), d.Day(), uuid.New(), SanitizeFileName(filename))
}

// SanitizeFileName reduces an arbitrary client-supplied filename to a safe
// key segment: only the final path element is kept, every rune outside
// [A-Za-z0-9._-] becomes '_', and the result is capped at maxFileNameLen
// bytes. Inputs that sanitize to nothing usable (empty, all dots) map to
// DefaultFileName.
func SanitizeFileName(name string) string {
	// Keep only the last path element, accepting both separator styles.
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	s := b.String()
	if len(s) > maxFileNameLen {
		s = s[:maxFileNameLen]
	}

	// "." and ".." are valid against the allow-list but are path navigation,
	// not names.
	if s == "" || strings.Trim(s, ".") == "" {
		return DefaultFileName
	}

	return s
}
