package guards

import (
	"strconv"
	"strings"
	"testing"
)

const modulePath = "github.com/MahdiBaghbani/fileshare-go/"

// TestLayering enforces the dependency direction cmd -> services ->
// components -> platform. Lower layers must never reach up.
func TestLayering(t *testing.T) {
	rules := []struct {
		dir       string
		forbidden []string
	}{
		{"internal/components", []string{"internal/services", "internal/platform/http/server", "cmd/"}},
		{"internal/components/shares", []string{"internal/components/api", "internal/components/gateway"}},
		{"internal/components/identity", []string{"internal/components/api", "internal/components/shares"}},
		{"internal/platform/store", []string{"internal/components/api", "internal/components/gateway", "internal/services"}},
		{"internal/platform/blob", []string{"internal/components", "internal/services"}},
		{"internal/platform/cache", []string{"internal/components", "internal/services"}},
		{"internal/services", []string{"cmd/"}},
	}

	root := findRepoRoot(t)
	var violations []string
	for _, rule := range rules {
		walkGoFiles(t, root, []string{rule.dir}, false, func(rel, content string) {
			for i, line := range strings.Split(content, "\n") {
				for _, f := range rule.forbidden {
					if strings.Contains(line, `"`+modulePath+f) {
						violations = append(violations,
							rel+":"+strconv.Itoa(i+1)+": imports "+strings.TrimSpace(line))
					}
				}
			}
		})
	}
	if len(violations) > 0 {
		t.Fatalf("layering violations:\n%s", strings.Join(violations, "\n"))
	}
}

// TestDomainPackagesStayTransportFree keeps the share and identity domain
// usable outside HTTP.
func TestDomainPackagesStayTransportFree(t *testing.T) {
	root := findRepoRoot(t)
	var violations []string
	walkGoFiles(t, root, []string{"internal/components/shares", "internal/components/identity", "internal/platform/store"}, false,
		func(rel, content string) {
			if strings.Contains(content, `"net/http"`) {
				violations = append(violations, rel)
			}
		})
	if len(violations) > 0 {
		t.Fatalf("domain packages import net/http:\n%s", strings.Join(violations, "\n"))
	}
}
