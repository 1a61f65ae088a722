package discover

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDiscoverClassifiesFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "src/lib.rs", "pub mod d3d9;")
	writeFile(t, dir, "src/d3d9/device.rs", "pub struct Device;")
	writeFile(t, dir, "doc/cpp2rust.txt", "IDirect3D9 = d3d9::Direct3D")
	writeFile(t, dir, "logo.png", "\x89PNG")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	want := []FileEntry{
		{Path: "doc/cpp2rust.txt", Kind: Text},
		{Path: "logo.png", Kind: Other},
		{Path: "src/d3d9/device.rs", Kind: Source, Language: "rust"},
		{Path: "src/lib.rs", Kind: Source, Language: "rust"},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(entries), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "src/lib.rs", "")
	writeFile(t, dir, "target/debug/build.rs", "")
	writeFile(t, dir, "src/nested/.git/config.txt", "")
	writeFile(t, dir, ".vscode/settings.md", "")
	writeFile(t, dir, "node_modules/pkg/readme.md", "")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d: %+v", len(entries), entries)
	}
	if entries[0].Path != "src/lib.rs" {
		t.Errorf("expected src/lib.rs, got %q", entries[0].Path)
	}
}

func TestDiscoverCustomSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "target/keep.rs", "")
	writeFile(t, dir, "generated/drop.rs", "")

	entries, err := Files(dir, Options{SkipDirs: []string{"generated"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "target/keep.rs" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "*.log\nscratch.rs\n")
	writeFile(t, dir, "src/lib.rs", "")
	writeFile(t, dir, "scratch.rs", "")
	writeFile(t, dir, "debug.log", "")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	paths := map[string]bool{}
	for _, e := range entries {
		paths[e.Path] = true
	}
	if paths["scratch.rs"] || paths["debug.log"] {
		t.Errorf("gitignored files were yielded: %v", paths)
	}
	if !paths["src/lib.rs"] {
		t.Errorf("src/lib.rs missing: %v", paths)
	}

	entries, err = Files(dir, Options{NoGitignore: true})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	paths = map[string]bool{}
	for _, e := range entries {
		paths[e.Path] = true
	}
	if !paths["scratch.rs"] {
		t.Errorf("NoGitignore should keep scratch.rs: %v", paths)
	}
}

func TestWalkIsRestartable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.rs", "")
	writeFile(t, dir, "b.md", "")

	seq := Walk(dir, Options{})
	count := func() int {
		n := 0
		for _, err := range seq {
			if err != nil {
				t.Fatalf("walk: %v", err)
			}
			n++
		}
		return n
	}
	if first, second := count(), count(); first != 2 || second != 2 {
		t.Fatalf("expected 2 entries on both walks, got %d and %d", first, second)
	}
}

func TestWalkStopsEarly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.rs", "")
	writeFile(t, dir, "b.rs", "")
	writeFile(t, dir, "c.rs", "")

	n := 0
	for _, err := range Walk(dir, Options{}) {
		if err != nil {
			t.Fatalf("walk: %v", err)
		}
		n++
		break
	}
	if n != 1 {
		t.Fatalf("expected to stop after 1 entry, got %d", n)
	}
}

func TestDiscoverRootErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := writeFile(t, dir, "plain.rs", "")

	if _, err := Files(file, Options{}); !errors.Is(err, ErrRootNotDir) {
		t.Errorf("expected ErrRootNotDir, got %v", err)
	}
	if _, err := Files(filepath.Join(dir, "missing"), Options{}); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestDiscoverUnreadableDirIsFatal(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced")
	}

	dir := t.TempDir()
	writeFile(t, dir, "locked/inner.rs", "")
	locked := filepath.Join(dir, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	if _, err := Files(dir, Options{}); err == nil {
		t.Fatal("expected unreadable directory to fail the walk")
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.rs", "")

	err := os.Symlink(filepath.Join(dir, "real.rs"), filepath.Join(dir, "link.rs"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (no symlink), got %d", len(entries))
	}
	if entries[0].Path != "real.rs" {
		t.Errorf("expected real.rs, got %q", entries[0].Path)
	}
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
