package repo

import (
	"fmt"
	"sort"

	"github.com/gritvcs/grit/pkg/object"
)

// FsckIssue describes one problem found during an integrity check.
type FsckIssue struct {
	Hash    object.Hash
	Problem string
}

// FsckReport summarizes a full integrity check of the object store and
// refs.
type FsckReport struct {
	Objects int
	Issues  []FsckIssue
}

// Fsck reads and validates every object in the store: content hashes,
// typed parse, and referential integrity (commits pointing at existing
// trees and parents, trees at existing children, tags at existing
// targets). Refs pointing at missing objects are reported too.
func (r *Repo) Fsck() (*FsckReport, error) {
	all, err := r.Store.List("")
	if err != nil {
		return nil, fmt.Errorf("fsck: list objects: %w", err)
	}

	report := &FsckReport{Objects: len(all)}
	present := make(map[object.Hash]struct{}, len(all))
	for _, h := range all {
		present[h] = struct{}{}
	}

	for _, h := range all {
		objType, data, err := r.Store.Read(h)
		if err != nil {
			report.addIssue(h, fmt.Sprintf("unreadable: %v", err))
			continue
		}

		refs, err := referencedBy(objType, data)
		if err != nil {
			report.addIssue(h, fmt.Sprintf("malformed %s: %v", objType, err))
			continue
		}
		for _, ref := range refs {
			if _, ok := present[ref]; !ok {
				report.addIssue(h, fmt.Sprintf("%s references missing object %s", objType, ref.Short()))
			}
		}
	}

	refs, err := r.ListRefs("")
	if err != nil {
		return nil, fmt.Errorf("fsck: list refs: %w", err)
	}
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h := refs[name]
		if _, ok := present[h]; !ok {
			report.addIssue(h, fmt.Sprintf("ref %s points at missing object", name))
		}
	}

	for _, issue := range report.Issues {
		r.log.WithFields(map[string]interface{}{
			"object":  issue.Hash.Short(),
			"problem": issue.Problem,
		}).Warn("fsck issue")
	}
	return report, nil
}

func (rep *FsckReport) addIssue(h object.Hash, problem string) {
	rep.Issues = append(rep.Issues, FsckIssue{Hash: h, Problem: problem})
}

// referencedBy parses an object just enough to collect its outgoing
// references.
func referencedBy(objType object.Type, data []byte) ([]object.Hash, error) {
	switch objType {
	case object.TypeBlob:
		return nil, nil
	case object.TypeTree:
		tree, err := object.UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		var refs []object.Hash
		for _, e := range tree.Entries {
			if e.Mode == object.ModeSubmodule {
				continue
			}
			refs = append(refs, e.Hash)
		}
		return refs, nil
	case object.TypeCommit:
		c, err := object.UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := []object.Hash{c.TreeHash}
		return append(refs, c.Parents...), nil
	case object.TypeTag:
		t, err := object.UnmarshalTag(data)
		if err != nil {
			return nil, err
		}
		return []object.Hash{t.TargetHash}, nil
	default:
		return nil, fmt.Errorf("unknown type %q", objType)
	}
}
