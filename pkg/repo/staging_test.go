package repo

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
)

func TestReadStaging_MissingIndexIsEmpty(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if len(stg.Entries) != 0 {
		t.Fatalf("fresh staging has %d entries", len(stg.Entries))
	}
}

func TestAdd_StagesFileAndWritesBlob(t *testing.T) {
	r := initRepoWithFile(t, "hello.txt", []byte("hello\n"))

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	e, ok := stg.Entries["hello.txt"]
	if !ok {
		t.Fatal("hello.txt not staged")
	}
	if e.Mode != object.ModeFile {
		t.Errorf("Mode = %q, want %q", e.Mode, object.ModeFile)
	}
	if e.Size != int64(len("hello\n")) {
		t.Errorf("Size = %d", e.Size)
	}

	data, err := object.ReadBlob(r.Store, e.BlobHash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(data) != "hello\n" {
		t.Errorf("blob content = %q", data)
	}
}

func TestAdd_DirectoryWalksRecursively(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, f := range []string{"pkg/a.go", "pkg/sub/b.go", "top.go"} {
		p := filepath.Join(dir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte("package x\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}

	if err := r.Add([]string{dir}); err != nil {
		t.Fatalf("Add(root): %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	var got []string
	for p := range stg.Entries {
		got = append(got, p)
	}
	want := []string{"pkg/a.go", "pkg/sub/b.go", "top.go"}
	sort.Strings(got)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("staged paths = %v, want %v", got, want)
	}
}

func TestAdd_SkipsRepositoryDirectory(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))
	if err := r.Add([]string{r.RootDir}); err != nil {
		t.Fatalf("Add(root): %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	for p := range stg.Entries {
		if p == gritDirName || strings.HasPrefix(p, gritDirName+"/") {
			t.Fatalf("repository directory content staged: %q", p)
		}
	}
}

func TestRemove_Unstages(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))

	if err := r.Remove([]string{"a.txt"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if _, ok := stg.Entries["a.txt"]; ok {
		t.Fatal("a.txt still staged after Remove")
	}

	// Removing a path that is not staged is a no-op.
	if err := r.Remove([]string{"missing.txt"}); err != nil {
		t.Fatalf("Remove(missing): %v", err)
	}
}

func TestAdd_ClearsConflictRecord(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("a\n"))

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	e := stg.Entries["a.txt"]
	e.Conflict = true
	e.ConflictType = ConflictContent
	e.OursBlobHash = e.BlobHash
	if err := r.WriteStaging(stg); err != nil {
		t.Fatalf("WriteStaging: %v", err)
	}

	if err := r.Add([]string{"a.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	stg, err = r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if stg.Entries["a.txt"].Conflict {
		t.Fatal("conflict record survived re-add")
	}
	if got := stg.ConflictedPaths(); len(got) != 0 {
		t.Fatalf("ConflictedPaths = %v, want empty", got)
	}
}

func TestConflictedPaths_Sorted(t *testing.T) {
	stg := &Staging{Entries: map[string]*StagingEntry{
		"z.txt": {Path: "z.txt", Conflict: true},
		"a.txt": {Path: "a.txt", Conflict: true},
		"m.txt": {Path: "m.txt"},
	}}
	got := stg.ConflictedPaths()
	want := []string{"a.txt", "z.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ConflictedPaths = %v, want %v", got, want)
	}
}
