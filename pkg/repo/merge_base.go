package repo

import (
	"fmt"
	"sort"

	"github.com/gritvcs/grit/pkg/object"
)

// FindMergeBase finds the best common ancestor of two commits: the common
// ancestor with the greatest committer timestamp, with the hash as a
// deterministic tie-break. Returns "" when the histories share no ancestor.
func (r *Repo) FindMergeBase(a, b object.Hash) (object.Hash, error) {
	if a == "" || b == "" {
		return "", nil
	}
	if a == b {
		return a, nil
	}

	ancestorsA, err := r.commitAncestors(a)
	if err != nil {
		return "", fmt.Errorf("find merge base: %w", err)
	}

	// Walk b's history, collecting every commit also reachable from a.
	var common []object.Hash
	visited := map[object.Hash]struct{}{}
	queue := []object.Hash{b}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}

		if _, ok := ancestorsA[cur]; ok {
			common = append(common, cur)
			// Parents of a common commit are also common but never better.
			continue
		}

		c, err := object.ReadCommit(r.Store, cur)
		if err != nil {
			return "", fmt.Errorf("find merge base: read commit %s: %w", cur, err)
		}
		queue = append(queue, c.Parents...)
	}

	if len(common) == 0 {
		return "", nil
	}
	if len(common) == 1 {
		return common[0], nil
	}

	type candidate struct {
		hash object.Hash
		time int64
	}
	cands := make([]candidate, 0, len(common))
	for _, h := range common {
		c, err := object.ReadCommit(r.Store, h)
		if err != nil {
			return "", fmt.Errorf("find merge base: read commit %s: %w", h, err)
		}
		cands = append(cands, candidate{hash: h, time: c.CommitterTime})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].time != cands[j].time {
			return cands[i].time > cands[j].time
		}
		return cands[i].hash < cands[j].hash
	})
	return cands[0].hash, nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (r *Repo) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	if ancestor == "" || descendant == "" {
		return false, nil
	}
	if ancestor == descendant {
		return true, nil
	}
	set, err := r.commitAncestors(descendant)
	if err != nil {
		return false, err
	}
	_, ok := set[ancestor]
	return ok, nil
}

// commitAncestors returns every commit reachable from start, inclusive.
func (r *Repo) commitAncestors(start object.Hash) (map[object.Hash]struct{}, error) {
	set := make(map[object.Hash]struct{})
	queue := []object.Hash{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := set[cur]; seen {
			continue
		}
		set[cur] = struct{}{}

		c, err := object.ReadCommit(r.Store, cur)
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", cur, err)
		}
		queue = append(queue, c.Parents...)
	}
	return set, nil
}
