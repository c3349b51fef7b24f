package guards

import (
	"strings"
	"testing"
)

// TestNoDirectForwardedHeaderParsing enforces that no code outside the realip
// library reads X-Forwarded-For or X-Real-IP. Download logs and rate limits
// must agree on the client address.
func TestNoDirectForwardedHeaderParsing(t *testing.T) {
	forbidden := []string{"X-Forwarded-For", "X-Real-IP"}
	allowed := "internal/platform/http/realip/"

	root := findRepoRoot(t)
	var violations []string
	walkGoFiles(t, root, sourceDirs, false, func(rel, content string) {
		if strings.HasPrefix(rel, allowed) {
			return
		}
		for _, token := range forbidden {
			if strings.Contains(content, token) {
				violations = append(violations, rel)
				return
			}
		}
	})
	if len(violations) > 0 {
		t.Fatalf("forwarded header references outside realip:\n%s", strings.Join(violations, "\n"))
	}
}
