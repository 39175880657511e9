package resolver

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveFilePathSibling(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.ek"), "")
	writeFile(t, filepath.Join(dir, "helper.ek"), "")

	r := NewFileResolver()
	resolved, ok := r.Resolve(filepath.Join(dir, "main.ek"), "./helper")
	if !ok {
		t.Fatal("expected resolution to succeed")
	}
	if resolved != filepath.Clean(filepath.Join(dir, "helper.ek")) {
		t.Fatalf("unexpected resolved path: %s", resolved)
	}
}

func TestResolveFilePathMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.ek"), "")

	r := NewFileResolver()
	if _, ok := r.Resolve(filepath.Join(dir, "main.ek"), "./nope"); ok {
		t.Fatal("expected resolution to fail for a missing file")
	}
}

func TestResolvePackageHighestSatisfying(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "erkao.mod"), "name = demo\n")
	writeFile(t, filepath.Join(root, "packages", "json", "1.0.0", "index.ek"), "")
	writeFile(t, filepath.Join(root, "packages", "json", "1.4.2", "index.ek"), "")
	writeFile(t, filepath.Join(root, "packages", "json", "2.0.0", "index.ek"), "")

	r := NewFileResolver()
	resolved, ok := r.Resolve(filepath.Join(root, "src", "main.ek"), "json@^1.0.0")
	if !ok {
		t.Fatal("expected a satisfying version to resolve")
	}
	want := filepath.Clean(filepath.Join(root, "packages", "json", "1.4.2", "index.ek"))
	if resolved != want {
		t.Fatalf("expected highest caret-satisfying version, got %s want %s", resolved, want)
	}
}

func TestResolvePackageRespectsLock(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "erkao.mod"), "name = demo\n")
	writeFile(t, filepath.Join(root, "erkao.lock"), "json = 1.0.0\n")
	writeFile(t, filepath.Join(root, "packages", "json", "1.0.0", "index.ek"), "")
	writeFile(t, filepath.Join(root, "packages", "json", "1.4.2", "index.ek"), "")

	r := NewFileResolver()
	resolved, ok := r.Resolve(filepath.Join(root, "src", "main.ek"), "json@^1.0.0")
	if !ok {
		t.Fatal("expected resolution to succeed with a lock pin")
	}
	want := filepath.Clean(filepath.Join(root, "packages", "json", "1.0.0", "index.ek"))
	if resolved != want {
		t.Fatalf("expected locked version, got %s want %s", resolved, want)
	}
}

func TestResolvePackageMissingProjectRoot(t *testing.T) {
	dir := t.TempDir()
	r := NewFileResolver()
	if _, ok := r.Resolve(filepath.Join(dir, "main.ek"), "json"); ok {
		t.Fatal("expected resolution to fail with no erkao.mod ancestor")
	}
}

func TestVersionSatisfiesWildcard(t *testing.T) {
	if !versionSatisfies("1.2.3", "1.x") {
		t.Fatal("expected 1.x to match 1.2.3")
	}
	if versionSatisfies("2.0.0", "1.x") {
		t.Fatal("expected 1.x not to match 2.0.0")
	}
}

func TestVersionSatisfiesTilde(t *testing.T) {
	if !versionSatisfies("1.2.9", "~1.2.3") {
		t.Fatal("expected ~1.2.3 to match 1.2.9")
	}
	if versionSatisfies("1.3.0", "~1.2.3") {
		t.Fatal("expected ~1.2.3 not to match 1.3.0")
	}
}
