package output

import (
	"errors"
	"os"
	"strings"
)

// SaveLines writes one entry per line, joined by "\n" with no trailing newline.
func SaveLines(path string, lines []string) error {
	return WriteFileAtomic(path, []byte(strings.Join(lines, "\n")), 0644)
}

// ReadLines returns the lines of path. A missing file yields no lines and no error.
func ReadLines(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}
