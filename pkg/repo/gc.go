package repo

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gritvcs/grit/pkg/object"
)

// GCOptions tunes a collection run.
type GCOptions struct {
	// GracePeriod protects recently written objects from sweeping even
	// when unreachable, covering in-flight writes.
	GracePeriod time.Duration
	// ReflogRetention bounds how far back reflog entries keep their
	// commits alive; older entries are pruned.
	ReflogRetention time.Duration
	// DryRun reports what would be deleted without deleting.
	DryRun bool
}

// GCSummary reports the outcome of a collection run.
type GCSummary struct {
	Scanned       int
	Reachable     int
	Deleted       int
	Skipped       int // unreachable but inside the grace period
	ReflogsPruned int
}

const (
	defaultGCGracePeriod     = 24 * time.Hour
	defaultGCReflogRetention = 90 * 24 * time.Hour
)

// GC deletes unreachable objects from the store.
//
// Roots are every ref, HEAD (detached included), commits named by reflog
// entries within the retention window, commits referenced by a pending
// merge or rewrite, and blobs in the staging area. Unreachable objects
// younger than the grace period survive this run.
func (r *Repo) GC(opts GCOptions) (*GCSummary, error) {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGCGracePeriod
	}
	if opts.ReflogRetention <= 0 {
		opts.ReflogRetention = defaultGCReflogRetention
	}

	now := time.Now()
	reflogCutoff := now.Add(-opts.ReflogRetention)

	summary := &GCSummary{}
	if !opts.DryRun {
		pruned, err := r.pruneAllReflogs(reflogCutoff)
		if err != nil {
			return nil, fmt.Errorf("gc: %w", err)
		}
		summary.ReflogsPruned = pruned
	}

	roots, err := r.gcRoots(reflogCutoff)
	if err != nil {
		return nil, fmt.Errorf("gc: %w", err)
	}

	reachable, err := object.ReachableSet(r.Store, roots)
	if err != nil {
		return nil, fmt.Errorf("gc: walk reachable: %w", err)
	}
	summary.Reachable = len(reachable)

	all, err := r.Store.List("")
	if err != nil {
		return nil, fmt.Errorf("gc: list objects: %w", err)
	}
	summary.Scanned = len(all)

	graceCutoff := now.Add(-opts.GracePeriod)
	for _, h := range all {
		if _, ok := reachable[h]; ok {
			continue
		}
		mod, err := r.Store.ModTime(h)
		if err == nil && mod.After(graceCutoff) {
			summary.Skipped++
			continue
		}
		if opts.DryRun {
			summary.Deleted++
			continue
		}
		if err := r.Store.Delete(h); err != nil {
			return nil, fmt.Errorf("gc: delete %s: %w", h, err)
		}
		summary.Deleted++
	}

	r.log.WithFields(map[string]interface{}{
		"scanned":   summary.Scanned,
		"reachable": summary.Reachable,
		"deleted":   summary.Deleted,
		"skipped":   summary.Skipped,
		"dry_run":   opts.DryRun,
	}).Info("gc complete")
	return summary, nil
}

// gcRoots gathers every hash the collector must treat as live.
func (r *Repo) gcRoots(reflogCutoff time.Time) ([]object.Hash, error) {
	rootSet := make(map[object.Hash]struct{})

	refs, err := r.ListRefs("")
	if err != nil {
		return nil, err
	}
	for _, h := range refs {
		addRoot(rootSet, h)
	}

	if head, err := r.ResolveRef("HEAD"); err == nil {
		addRoot(rootSet, head)
	}

	names, err := r.reflogRefNames()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		entries, err := r.readReflogFile(name)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if time.Unix(e.Timestamp, 0).Before(reflogCutoff) {
				continue
			}
			addRoot(rootSet, e.OldHash)
			addRoot(rootSet, e.NewHash)
		}
	}

	pending, err := r.rewriteStateHashes()
	if err != nil {
		return nil, err
	}
	for _, h := range pending {
		addRoot(rootSet, h)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return nil, err
	}
	for _, e := range stg.Entries {
		addRoot(rootSet, e.BlobHash)
		addRoot(rootSet, e.BaseBlobHash)
		addRoot(rootSet, e.OursBlobHash)
		addRoot(rootSet, e.TheirsBlobHash)
	}

	roots := make([]object.Hash, 0, len(rootSet))
	for h := range rootSet {
		roots = append(roots, h)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots, nil
}

func addRoot(set map[object.Hash]struct{}, h object.Hash) {
	s := strings.TrimSpace(string(h))
	if s == "" || s == zeroHash {
		return
	}
	set[object.Hash(s)] = struct{}{}
}

func (r *Repo) pruneAllReflogs(cutoff time.Time) (int, error) {
	names, err := r.reflogRefNames()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, name := range names {
		pruned, err := r.pruneReflog(name, cutoff)
		if err != nil {
			return total, err
		}
		total += pruned
	}
	return total, nil
}
