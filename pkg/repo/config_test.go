package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
)

func TestInitWritesDefaultConfig(t *testing.T) {
	r, err := Init(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}

	if r.Config == nil {
		t.Fatalf("config is nil after init")
	}
	if r.Config.Core.HashAlgorithm != "sha256" {
		t.Fatalf("hash algorithm = %q, want %q", r.Config.Core.HashAlgorithm, "sha256")
	}
	if r.Config.Storage.Backend != "local" {
		t.Fatalf("backend = %q, want %q", r.Config.Storage.Backend, "local")
	}
	if r.Config.Core.Bare {
		t.Fatalf("bare = true for a working repository")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	cfg := r.Config
	cfg.User.Name = "Ann Example"
	cfg.User.Email = "ann@example.com"
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.Config.User.Name != "Ann Example" {
		t.Fatalf("user name = %q, want %q", reopened.Config.User.Name, "Ann Example")
	}
	if reopened.Config.User.Email != "ann@example.com" {
		t.Fatalf("user email = %q, want %q", reopened.Config.User.Email, "ann@example.com")
	}
	if reopened.Config.Storage.Backend != "local" {
		t.Fatalf("backend = %q, want %q", reopened.Config.Storage.Backend, "local")
	}
}

func TestOpenRejectsUnknownHashAlgorithm(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, false)
	if err != nil {
		t.Fatal(err)
	}

	raw := []byte("[core]\nhashAlgorithm = \"sha1\"\n")
	if err := os.WriteFile(filepath.Join(r.GritDir, "config.toml"), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(dir); err == nil {
		t.Fatalf("expected Open to reject unsupported hash algorithm")
	}
}

func TestOpenFindsRepoFromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir, false); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	r, err := Open(sub)
	if err != nil {
		t.Fatalf("Open from subdirectory: %v", err)
	}
	if r.RootDir != dir {
		t.Fatalf("root = %q, want %q", r.RootDir, dir)
	}
}

func TestInitBareRepository(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if r.GritDir != dir {
		t.Fatalf("bare grit dir = %q, want %q", r.GritDir, dir)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open bare: %v", err)
	}
	if !reopened.Bare() {
		t.Fatalf("expected reopened repository to be bare")
	}
}

func TestListRefs(t *testing.T) {
	r, err := Init(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.UpdateRef("refs/heads/main", object.Hash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")); err != nil {
		t.Fatal(err)
	}
	if err := r.UpdateRef("refs/tags/v1", object.Hash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")); err != nil {
		t.Fatal(err)
	}

	all, err := r.ListRefs("")
	if err != nil {
		t.Fatal(err)
	}
	if got := all["refs/heads/main"]; got == "" {
		t.Fatalf("missing refs/heads/main from ListRefs")
	}
	if got := all["refs/tags/v1"]; got == "" {
		t.Fatalf("missing refs/tags/v1 from ListRefs")
	}

	heads, err := r.ListRefs("heads")
	if err != nil {
		t.Fatal(err)
	}
	if len(heads) != 1 {
		t.Fatalf("heads len = %d, want 1", len(heads))
	}
	if _, ok := heads["refs/heads/main"]; !ok {
		t.Fatalf("expected refs/heads/main in prefix listing")
	}
}
