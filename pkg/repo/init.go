package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gritvcs/grit/pkg/object"
)

const gritDirName = ".grit"

// Init creates a new grit repository at path. For a working repository the
// .grit/ directory is created inside path; for a bare repository path itself
// becomes the object/ref database. Returns an error if a repository already
// exists there.
func Init(path string, bare bool) (*Repo, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	gritDir := filepath.Join(path, gritDirName)
	if bare {
		gritDir = path
	}

	if _, err := os.Stat(filepath.Join(gritDir, "HEAD")); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", gritDir)
	}

	dirs := []string{
		filepath.Join(gritDir, "objects"),
		filepath.Join(gritDir, "refs", "heads"),
		filepath.Join(gritDir, "refs", "tags"),
		filepath.Join(gritDir, "logs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(gritDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	r := &Repo{
		RootDir: path,
		GritDir: gritDir,
		log:     defaultLogger(),
	}
	if err := r.WriteConfig(defaultConfig(bare)); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	store, err := openStore(gritDir, r.Config, r.log)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r.Store = store
	return r, nil
}

// Open searches upward from path for a repository and opens it. A directory
// is a repository if it contains .grit/, or is itself a bare layout (HEAD +
// objects/ + refs/).
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		if gritDir := filepath.Join(cur, gritDirName); isRepoDir(gritDir) {
			return openAt(cur, gritDir)
		}
		if isRepoDir(cur) {
			return openAt(cur, cur)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a grit repository (or any parent up to /)")
		}
		cur = parent
	}
}

func isRepoDir(dir string) bool {
	if info, err := os.Stat(filepath.Join(dir, "HEAD")); err != nil || info.IsDir() {
		return false
	}
	if info, err := os.Stat(filepath.Join(dir, "refs")); err != nil || !info.IsDir() {
		return false
	}
	return true
}

func openAt(rootDir, gritDir string) (*Repo, error) {
	cfg, err := readConfigFile(filepath.Join(gritDir, "config.toml"))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	log := defaultLogger()
	store, err := openStore(gritDir, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	if cfg.Core.Bare {
		rootDir = gritDir
	}
	return &Repo{
		RootDir: rootDir,
		GritDir: gritDir,
		Store:   store,
		Config:  cfg,
		log:     log,
	}, nil
}

// Head reads HEAD. If the content starts with "ref: ", the ref path is
// returned (e.g. "refs/heads/main"); otherwise the raw detached hash string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.GritDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")
	if strings.HasPrefix(content, symRefPrefix) {
		return strings.TrimPrefix(content, symRefPrefix), nil
	}
	return content, nil
}

// CurrentBranch returns the branch name HEAD is attached to, or "" when
// HEAD is detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	const prefix = "refs/heads/"
	if strings.HasPrefix(head, prefix) {
		return strings.TrimPrefix(head, prefix), nil
	}
	return "", nil
}

// RevParse resolves a user-supplied revision: a full hash is returned as-is,
// anything else goes through ref resolution.
func (r *Repo) RevParse(rev string) (object.Hash, error) {
	rev = strings.TrimSpace(rev)
	if object.ValidHash(rev) {
		return object.Hash(rev), nil
	}
	return r.ResolveRef(rev)
}
