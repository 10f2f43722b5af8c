package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
)

// helper: initRepoWithFile creates a temp repo, writes a file, and stages it.
func initRepoWithFile(t *testing.T, name string, content []byte) *Repo {
	t.Helper()
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	writeAndAdd(t, r, name, content)
	return r
}

// helper: writeAndAdd writes a file into the worktree and stages it.
func writeAndAdd(t *testing.T, r *Repo, name string, content []byte) {
	t.Helper()
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(absPath, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := r.Add([]string{name}); err != nil {
		t.Fatalf("Add(%s): %v", name, err)
	}
}

// helper: mustCommit commits the staging area or fails the test.
func mustCommit(t *testing.T, r *Repo, message string) object.Hash {
	t.Helper()
	h, err := r.Commit(message, "test-author")
	if err != nil {
		t.Fatalf("Commit(%q): %v", message, err)
	}
	return h
}

// helper: readWorktreeFile reads a file from the repo's working directory.
func readWorktreeFile(t *testing.T, r *Repo, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return data
}

func TestCommit_CreatesObject(t *testing.T) {
	r := initRepoWithFile(t, "main.go", []byte("package main\n\nfunc main() {}\n"))

	h, err := r.Commit("initial commit", "test-author")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if h == "" {
		t.Fatal("Commit returned empty hash")
	}

	c, err := object.ReadCommit(r.Store, h)
	if err != nil {
		t.Fatalf("ReadCommit(%s): %v", h, err)
	}
	if c.Message != "initial commit" {
		t.Errorf("Message = %q, want %q", c.Message, "initial commit")
	}
	if c.Author != "test-author" {
		t.Errorf("Author = %q, want %q", c.Author, "test-author")
	}
	if c.TreeHash == "" {
		t.Error("TreeHash is empty")
	}
	if len(c.Parents) != 0 {
		t.Errorf("root commit has %d parents", len(c.Parents))
	}
}

func TestCommit_AdvancesBranch(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))
	first := mustCommit(t, r, "first")

	got, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if got != first {
		t.Fatalf("main = %s, want %s", got, first)
	}

	writeAndAdd(t, r, "a.txt", []byte("two\n"))
	second := mustCommit(t, r, "second")

	c, err := object.ReadCommit(r.Store, second)
	if err != nil {
		t.Fatalf("ReadCommit(second): %v", err)
	}
	if len(c.Parents) != 1 || c.Parents[0] != first {
		t.Fatalf("second commit parents = %v, want [%s]", c.Parents, first)
	}
}

func TestCommit_NothingStaged(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, err = r.Commit("empty", "test-author")
	if !errors.Is(err, ErrNothingStaged) {
		t.Fatalf("expected ErrNothingStaged, got: %v", err)
	}
}

func TestCommit_RejectsConflictedStaging(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	stg.Entries["a.txt"].Conflict = true
	stg.Entries["a.txt"].ConflictType = ConflictContent
	if err := r.WriteStaging(stg); err != nil {
		t.Fatalf("WriteStaging: %v", err)
	}

	_, err = r.Commit("conflicted", "test-author")
	if !errors.Is(err, ErrUnresolvedConflicts) {
		t.Fatalf("expected ErrUnresolvedConflicts, got: %v", err)
	}
}

func TestCommit_DefaultIdentityFromConfig(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))

	cfg := *r.Config
	cfg.User = UserConfig{Name: "Ann Example", Email: "ann@example.com"}
	if err := r.WriteConfig(&cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	h, err := r.Commit("configured identity", "")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	c, err := object.ReadCommit(r.Store, h)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Author != "Ann Example <ann@example.com>" {
		t.Errorf("Author = %q", c.Author)
	}
	if c.Committer != c.Author {
		t.Errorf("Committer = %q, want author", c.Committer)
	}
}

func TestCommitWithSigner_PersistsSignature(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))

	var signed []byte
	h, err := r.CommitWithSigner("signed commit", "test-author", func(payload []byte) (string, error) {
		signed = payload
		return "test-signature", nil
	})
	if err != nil {
		t.Fatalf("CommitWithSigner: %v", err)
	}
	if len(signed) == 0 {
		t.Fatal("signer received empty payload")
	}

	c, err := object.ReadCommit(r.Store, h)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Signature != "test-signature" {
		t.Errorf("Signature = %q", c.Signature)
	}
}

func TestLog_WalksFirstParent(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))
	first := mustCommit(t, r, "first")
	writeAndAdd(t, r, "a.txt", []byte("two\n"))
	second := mustCommit(t, r, "second")
	writeAndAdd(t, r, "a.txt", []byte("three\n"))
	third := mustCommit(t, r, "third")

	entries, err := r.Log(third, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Log returned %d entries, want 3", len(entries))
	}
	wantOrder := []object.Hash{third, second, first}
	for i, want := range wantOrder {
		if entries[i].Hash != want {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].Hash, want)
		}
	}

	limited, err := r.Log(third, 2)
	if err != nil {
		t.Fatalf("Log(limit=2): %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited Log returned %d entries, want 2", len(limited))
	}
}
