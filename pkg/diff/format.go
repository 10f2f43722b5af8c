package diff

import (
	"fmt"
	"strings"
)

// FileDiff is the rendered difference between two revisions of one path.
type FileDiff struct {
	// OldPath/NewPath are repo-relative; empty means the side is absent
	// (added or deleted file).
	OldPath string
	NewPath string
	Binary  bool
	Hunks   []Hunk
}

// File diffs two revisions of a path. Binary content (either side) produces
// a FileDiff with Binary set and no hunks.
func File(oldPath, newPath string, oldData, newData []byte, context int) *FileDiff {
	fd := &FileDiff{OldPath: oldPath, NewPath: newPath}
	if IsBinary(oldData) || IsBinary(newData) {
		fd.Binary = true
		return fd
	}
	fd.Hunks = BuildHunks(Lines(oldData, newData), context)
	return fd
}

// Unified renders the diff in unified format: "--- a/…", "+++ b/…",
// "@@ -start,len +start,len @@" headers and prefixed lines. Binary diffs
// render a marker line instead of hunks. An empty diff renders nothing.
func (d *FileDiff) Unified() string {
	if !d.Binary && len(d.Hunks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n", sideLabel("a", d.OldPath))
	fmt.Fprintf(&b, "+++ %s\n", sideLabel("b", d.NewPath))

	if d.Binary {
		fmt.Fprintf(&b, "Binary files %s and %s differ\n",
			sideLabel("a", d.OldPath), sideLabel("b", d.NewPath))
		return b.String()
	}

	for _, h := range d.Hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
		for _, op := range h.Ops {
			switch op.Kind {
			case OpDelete:
				fmt.Fprintf(&b, "-%s\n", op.Text)
			case OpInsert:
				fmt.Fprintf(&b, "+%s\n", op.Text)
			default:
				fmt.Fprintf(&b, " %s\n", op.Text)
			}
		}
	}
	return b.String()
}

func sideLabel(prefix, path string) string {
	if path == "" {
		return "/dev/null"
	}
	return prefix + "/" + path
}
