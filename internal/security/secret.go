package security

import (
	"fmt"
	"os"
	"strings"
)

// LoadSecret returns the signing secret from inline when set, otherwise from the file at path.
// Surrounding whitespace is trimmed. The result must be at least MinSecretBytes long.
func LoadSecret(inline, path string) ([]byte, error) {
	var s string
	switch {
	case strings.TrimSpace(inline) != "":
		s = strings.TrimSpace(inline)
	case strings.TrimSpace(path) != "":
		b, err := os.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return nil, fmt.Errorf("read signing secret: %w", err)
		}
		s = strings.TrimSpace(string(b))
	}
	if len(s) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}
	return []byte(s), nil
}
