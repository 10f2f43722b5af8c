package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gritvcs/grit/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// ErrNothingStaged is returned by Commit when the staging area is empty.
var ErrNothingStaged = errors.New("nothing staged")

// ErrUnresolvedConflicts is returned when an operation requires a clean
// staging area but conflicted entries remain.
var ErrUnresolvedConflicts = errors.New("unresolved conflicts in staging area")

// Commit creates a new commit from the current staging area and advances
// the current branch (or detached HEAD) to it.
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	return r.CommitWithSigner(message, author, nil)
}

// CommitWithSigner creates a new commit and signs it when signer is provided.
func (r *Repo) CommitWithSigner(message, author string, signer CommitSigner) (object.Hash, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if len(stg.Entries) == 0 {
		return "", fmt.Errorf("commit: %w", ErrNothingStaged)
	}
	if conflicted := stg.ConflictedPaths(); len(conflicted) > 0 {
		return "", fmt.Errorf("commit: %w: %s", ErrUnresolvedConflicts, strings.Join(conflicted, ", "))
	}

	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	// First commit on an unborn branch has no parent.
	var parents []object.Hash
	parentHash, err := r.ResolveRef("HEAD")
	if err == nil && parentHash != "" {
		parents = append(parents, parentHash)
	}

	commitHash, err := r.writeCommitObj(treeHash, parents, author, message, signer)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	if err := r.advanceHead(commitHash, parentHash); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return commitHash, nil
}

// writeCommitObj assembles, optionally signs, and stores a commit object.
func (r *Repo) writeCommitObj(treeHash object.Hash, parents []object.Hash, author, message string, signer CommitSigner) (object.Hash, error) {
	if strings.TrimSpace(author) == "" {
		author = r.defaultIdentity()
	}
	now := time.Now().Unix()
	commitObj := &object.CommitObj{
		TreeHash:      treeHash,
		Parents:       parents,
		Author:        author,
		AuthorTime:    now,
		Committer:     author,
		CommitterTime: now,
		Message:       message,
	}
	if signer != nil {
		signature, err := signer(object.SigningPayload(commitObj))
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
		commitObj.Signature = signature
	}

	h, err := object.WriteCommit(r.Store, commitObj)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return h, nil
}

// advanceHead moves the current branch ref, or detached HEAD, from oldHash
// to newHash with a CAS update.
func (r *Repo) advanceHead(newHash, oldHash object.Hash) error {
	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}

	if strings.HasPrefix(head, "refs/") {
		// An empty oldHash means the branch is unborn; the CAS then
		// requires the ref to still be absent.
		if err := r.UpdateRefCAS(head, newHash, oldHash); err != nil {
			return fmt.Errorf("update ref %q: %w", head, err)
		}
		return nil
	}

	if err := r.UpdateRefCAS("HEAD", newHash, object.Hash(strings.TrimSpace(head))); err != nil {
		return fmt.Errorf("update detached HEAD: %w", err)
	}
	return nil
}

func (r *Repo) defaultIdentity() string {
	if r.Config != nil && r.Config.User.Name != "" {
		if r.Config.User.Email != "" {
			return fmt.Sprintf("%s <%s>", r.Config.User.Name, r.Config.User.Email)
		}
		return r.Config.User.Name
	}
	return "unknown"
}

// LogEntry pairs a commit with its hash for history listings.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits newest first. A limit
// of zero or less means no limit.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start

	for current != "" && (limit <= 0 || len(entries) < limit) {
		c, err := object.ReadCommit(r.Store, current)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}
	return entries, nil
}

// commitTreeHash resolves a commit's tree hash, returning "" for the empty
// hash so callers can treat a root commit's missing parent as an empty tree.
func (r *Repo) commitTreeHash(h object.Hash) (object.Hash, error) {
	if h == "" {
		return "", nil
	}
	c, err := object.ReadCommit(r.Store, h)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", h, err)
	}
	return c.TreeHash, nil
}
