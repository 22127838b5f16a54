package accounts_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shuttle/internal/accounts"
)

func TestSetMatchFoldsCase(t *testing.T) {
	set := accounts.NewSet([]string{"Alice", "bob", "Carol"})
	tests := []struct {
		name      string
		local     string
		canonical string
		ok        bool
	}{
		{"exact", "bob", "bob", true},
		{"upper local", "BOB", "bob", true},
		{"mixed destination", "alice", "Alice", true},
		{"surrounding space", "  carol ", "Carol", true},
		{"unknown", "mallory", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			canonical, ok := set.Match(tc.local)
			if ok != tc.ok || canonical != tc.canonical {
				t.Fatalf("Match(%q) = %q, %v; want %q, %v", tc.local, canonical, ok, tc.canonical, tc.ok)
			}
		})
	}
}

func TestSetFirstSpellingWins(t *testing.T) {
	set := accounts.NewSet([]string{"Dave", "dave", "DAVE"})
	if set.Len() != 1 {
		t.Fatalf("expected 1 folded account, got %d", set.Len())
	}
	canonical, ok := set.Match("dAvE")
	if !ok || canonical != "Dave" {
		t.Fatalf("expected first spelling Dave, got %q (%v)", canonical, ok)
	}
}

func TestDirResolverListsDirectoriesOnly(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"alice", "Bob", ".snapshots"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("Mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	set, err := accounts.DirResolver{Root: root}.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("expected 2 accounts, got %d (%v)", set.Len(), set.Names())
	}
	if _, ok := set.Match("bob"); !ok {
		t.Fatal("expected bob to match Bob")
	}
	if _, ok := set.Match(".snapshots"); ok {
		t.Fatal("hidden directories must not become accounts")
	}
	if _, ok := set.Match("README"); ok {
		t.Fatal("plain files must not become accounts")
	}
}

func TestDirResolverMissingRoot(t *testing.T) {
	_, err := accounts.DirResolver{Root: filepath.Join(t.TempDir(), "absent")}.Resolve(context.Background())
	if err == nil {
		t.Fatal("expected error for missing destination root")
	}
}
