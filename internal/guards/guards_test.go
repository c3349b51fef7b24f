// Package guards holds repository-wide source checks. The tests walk the
// module's Go files and never import the packages they inspect.
package guards

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sourceDirs are the trees the guards scan, relative to the repo root.
var sourceDirs = []string{"cmd", "internal"}

// findRepoRoot finds the repository root by looking for go.mod
func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find go.mod in any parent directory")
		}
		dir = parent
	}
}

// walkGoFiles calls fn for every Go file under dirs. Test files are skipped
// unless includeTests is set.
func walkGoFiles(t *testing.T, root string, dirs []string, includeTests bool, fn func(rel, content string)) {
	t.Helper()
	for _, d := range dirs {
		base := filepath.Join(root, d)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(base, func(path string, e fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if e.IsDir() || !strings.HasSuffix(path, ".go") {
				return nil
			}
			if !includeTests && strings.HasSuffix(path, "_test.go") {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			fn(filepath.ToSlash(rel), string(data))
			return nil
		})
		if err != nil {
			t.Fatalf("walk %s: %v", base, err)
		}
	}
}
