package headers

import (
	"fmt"
	"net/textproto"
	"strings"
)

// Parse converts "Key: Value" strings into a map keyed by the canonical
// header name. A later entry for the same header replaces an earlier one.
func Parse(h []string) (map[string]string, error) {
	m := make(map[string]string, len(h))
	for _, hdr := range h {
		parts := strings.SplitN(hdr, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("malformed header %q, want \"Key: Value\"", hdr)
		}
		key := textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(parts[0]))
		m[key] = strings.TrimSpace(parts[1])
	}
	return m, nil
}
