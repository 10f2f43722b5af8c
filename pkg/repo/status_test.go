package repo

import (
	"os"
	"path/filepath"
	"testing"
)

func statusFor(t *testing.T, r *Repo, path string) *StatusEntry {
	t.Helper()
	entries, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for i := range entries {
		if entries[i].Path == path {
			return &entries[i]
		}
	}
	return nil
}

func TestStatus_UntrackedFile(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "loose.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	e := statusFor(t, r, "loose.txt")
	if e == nil {
		t.Fatal("loose.txt missing from status")
	}
	if e.IndexStatus != StatusUntracked || e.WorkStatus != StatusUntracked {
		t.Fatalf("status = %d/%d, want untracked", e.IndexStatus, e.WorkStatus)
	}
}

func TestStatus_StagedNewFile(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))

	e := statusFor(t, r, "a.txt")
	if e == nil {
		t.Fatal("a.txt missing from status")
	}
	if e.IndexStatus != StatusNew {
		t.Fatalf("IndexStatus = %d, want StatusNew", e.IndexStatus)
	}
	if e.WorkStatus != StatusClean {
		t.Fatalf("WorkStatus = %d, want StatusClean", e.WorkStatus)
	}
}

func TestStatus_CleanAfterCommit(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))
	mustCommit(t, r, "first")

	e := statusFor(t, r, "a.txt")
	if e == nil {
		t.Fatal("a.txt missing from status")
	}
	if e.IndexStatus != StatusClean || e.WorkStatus != StatusClean {
		t.Fatalf("status = %d/%d, want clean", e.IndexStatus, e.WorkStatus)
	}
}

func TestStatus_ModifiedAfterRestage(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))
	mustCommit(t, r, "first")
	writeAndAdd(t, r, "a.txt", []byte("changed\n"))

	e := statusFor(t, r, "a.txt")
	if e == nil {
		t.Fatal("a.txt missing from status")
	}
	if e.IndexStatus != StatusModified {
		t.Fatalf("IndexStatus = %d, want StatusModified", e.IndexStatus)
	}
}

func TestStatus_DirtyWorktree(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))
	mustCommit(t, r, "first")

	// Edit without re-staging. Content length changes so the stat fast
	// path cannot call it clean.
	if err := os.WriteFile(filepath.Join(r.RootDir, "a.txt"), []byte("edited content\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	e := statusFor(t, r, "a.txt")
	if e == nil {
		t.Fatal("a.txt missing from status")
	}
	if e.WorkStatus != StatusDirty {
		t.Fatalf("WorkStatus = %d, want StatusDirty", e.WorkStatus)
	}
}

func TestStatus_DeletedFromWorktree(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))
	mustCommit(t, r, "first")

	if err := os.Remove(filepath.Join(r.RootDir, "a.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	e := statusFor(t, r, "a.txt")
	if e == nil {
		t.Fatal("a.txt missing from status")
	}
	if e.WorkStatus != StatusDeleted {
		t.Fatalf("WorkStatus = %d, want StatusDeleted", e.WorkStatus)
	}
}

func TestStatus_DeletedFromIndex(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))
	mustCommit(t, r, "first")

	if err := r.Remove([]string{"a.txt"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	e := statusFor(t, r, "a.txt")
	if e == nil {
		t.Fatal("a.txt missing from status")
	}
	if e.IndexStatus != StatusDeleted {
		t.Fatalf("IndexStatus = %d, want StatusDeleted", e.IndexStatus)
	}
}

func TestStatus_ConflictEntry(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))
	mustCommit(t, r, "first")

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	stg.Entries["a.txt"].Conflict = true
	stg.Entries["a.txt"].ConflictType = ConflictContent
	if err := r.WriteStaging(stg); err != nil {
		t.Fatalf("WriteStaging: %v", err)
	}

	e := statusFor(t, r, "a.txt")
	if e == nil {
		t.Fatal("a.txt missing from status")
	}
	if e.IndexStatus != StatusConflict || e.WorkStatus != StatusConflict {
		t.Fatalf("status = %d/%d, want conflict", e.IndexStatus, e.WorkStatus)
	}
}
