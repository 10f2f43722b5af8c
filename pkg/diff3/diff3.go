package diff3

import (
	"bytes"
	"strings"
)

// Conflict marker lines written into merged output.
const (
	MarkerOurs   = "<<<<<<< ours"
	MarkerSep    = "======="
	MarkerTheirs = ">>>>>>> theirs"
)

// HunkType classifies a hunk in a three-way merge result.
type HunkType int

const (
	HunkClean    HunkType = iota // Hunk merged cleanly.
	HunkConflict                 // Hunk requires manual resolution.
)

// Hunk is a contiguous section of the merge output.
type Hunk struct {
	Type                       HunkType
	Base, Ours, Theirs, Merged []byte
}

// Result holds the outcome of a three-way text merge.
type Result struct {
	Merged       []byte // Full merged content, with conflict markers if any.
	HasConflicts bool
	Conflicts    int    // Number of conflicted hunks.
	Hunks        []Hunk // Hunks in document order.
}

// Merge performs a three-way merge of base, ours, and theirs.
//
// The inputs are split into lines; diff(base, ours) and diff(base, theirs)
// are each converted into runs of unchanged/changed regions relative to the
// base ("chunks"); then both chunk sequences are walked in parallel by base
// position. Regions changed on one side take that side; regions changed
// identically on both sides merge to that value; regions changed differently
// on both sides become a conflict wrapped in markers.
func Merge(base, ours, theirs []byte) Result {
	baseLines := splitLines(string(base))
	oursLines := splitLines(string(ours))
	theirsLines := splitLines(string(theirs))

	oursChunks := buildChunks(baseLines, oursLines)
	theirsChunks := buildChunks(baseLines, theirsLines)

	return mergeChunks(baseLines, oursChunks, theirsChunks)
}

// HasMarkers reports whether data still contains a conflict marker line.
// Used to verify resolution before a paused operation continues.
func HasMarkers(data []byte) bool {
	for _, line := range splitLines(string(data)) {
		if line == MarkerOurs || line == MarkerSep || line == MarkerTheirs {
			return true
		}
	}
	return false
}

// splitLines splits s into lines without producing a trailing empty element
// for a final newline.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// chunk is a contiguous region relative to the base: the base line range
// [baseStart, baseEnd) and the side's replacement lines for that range.
type chunk struct {
	baseStart, baseEnd int
	lines              []string
	changed            bool
}

// buildChunks converts a two-way diff (base → side) into base-aligned chunks.
func buildChunks(base, side []string) []chunk {
	ops := MyersDiff(base, side)

	var chunks []chunk
	baseIdx := 0

	i := 0
	for i < len(ops) {
		op := ops[i]

		if op.Type == Equal {
			chunks = append(chunks, chunk{
				baseStart: baseIdx,
				baseEnd:   baseIdx + 1,
				lines:     []string{op.Line},
			})
			baseIdx++
			i++
			continue
		}

		// Accumulate a contiguous changed run of deletes and inserts.
		chunkStart := baseIdx
		var sideLines []string
		for i < len(ops) && ops[i].Type != Equal {
			if ops[i].Type == Delete {
				baseIdx++
			} else {
				sideLines = append(sideLines, ops[i].Line)
			}
			i++
		}

		chunks = append(chunks, chunk{
			baseStart: chunkStart,
			baseEnd:   baseIdx,
			lines:     sideLines,
			changed:   true,
		})
	}
	return chunks
}

// mergeChunks walks the two chunk sequences in parallel, aligned by base
// line positions.
func mergeChunks(baseLines []string, oursChunks, theirsChunks []chunk) Result {
	var merged bytes.Buffer
	var hunks []Hunk
	conflicts := 0

	oi, ti := 0, 0

	for oi < len(oursChunks) || ti < len(theirsChunks) {
		var oc, tc *chunk
		if oi < len(oursChunks) {
			oc = &oursChunks[oi]
		}
		if ti < len(theirsChunks) {
			tc = &theirsChunks[ti]
		}

		if oc == nil {
			writeLines(&merged, tc.lines)
			hunks = append(hunks, cleanHunk(baseLines, tc))
			ti++
			continue
		}
		if tc == nil {
			writeLines(&merged, oc.lines)
			hunks = append(hunks, cleanHunk(baseLines, oc))
			oi++
			continue
		}

		if oc.baseStart == tc.baseStart && oc.baseEnd == tc.baseEnd {
			// Aligned chunks over the same base region.
			switch {
			case !oc.changed && !tc.changed:
				writeLines(&merged, oc.lines)
				hunks = append(hunks, cleanHunk(baseLines, oc))
			case oc.changed && !tc.changed:
				writeLines(&merged, oc.lines)
				hunks = append(hunks, cleanHunk(baseLines, oc))
			case !oc.changed && tc.changed:
				writeLines(&merged, tc.lines)
				hunks = append(hunks, cleanHunk(baseLines, tc))
			default:
				if linesEqual(oc.lines, tc.lines) {
					writeLines(&merged, oc.lines)
					hunks = append(hunks, cleanHunk(baseLines, oc))
				} else {
					conflicts++
					writeConflict(&merged, oc.lines, tc.lines)
					hunks = append(hunks, conflictHunk(baseLines, oc, tc))
				}
			}
			oi++
			ti++
			continue
		}

		// Misaligned: one side's change spans multiple base-aligned chunks
		// on the other side. Grow the region until both sides close.
		regionEnd := maxInt(oc.baseEnd, tc.baseEnd)

		var oursRegion, theirsRegion []chunk
		for oi < len(oursChunks) && oursChunks[oi].baseStart < regionEnd {
			oursRegion = append(oursRegion, oursChunks[oi])
			if oursChunks[oi].baseEnd > regionEnd {
				regionEnd = oursChunks[oi].baseEnd
			}
			oi++
		}
		for ti < len(theirsChunks) && theirsChunks[ti].baseStart < regionEnd {
			theirsRegion = append(theirsRegion, theirsChunks[ti])
			if theirsChunks[ti].baseEnd > regionEnd {
				regionEnd = theirsChunks[ti].baseEnd
			}
			ti++
		}

		regionStart := minInt(oursRegion[0].baseStart, theirsRegion[0].baseStart)
		baseRegion := baseLines[regionStart:regionEnd]
		oursOut := assembleRegion(oursRegion)
		theirsOut := assembleRegion(theirsRegion)

		switch {
		case !anyChanged(oursRegion) && !anyChanged(theirsRegion):
			writeLines(&merged, baseRegion)
			hunks = append(hunks, Hunk{
				Type: HunkClean, Base: joinLines(baseRegion), Merged: joinLines(baseRegion),
			})
		case anyChanged(oursRegion) && !anyChanged(theirsRegion):
			writeLines(&merged, oursOut)
			hunks = append(hunks, Hunk{
				Type: HunkClean, Base: joinLines(baseRegion),
				Ours: joinLines(oursOut), Merged: joinLines(oursOut),
			})
		case !anyChanged(oursRegion) && anyChanged(theirsRegion):
			writeLines(&merged, theirsOut)
			hunks = append(hunks, Hunk{
				Type: HunkClean, Base: joinLines(baseRegion),
				Theirs: joinLines(theirsOut), Merged: joinLines(theirsOut),
			})
		default:
			if linesEqual(oursOut, theirsOut) {
				writeLines(&merged, oursOut)
				hunks = append(hunks, Hunk{
					Type: HunkClean, Base: joinLines(baseRegion),
					Ours: joinLines(oursOut), Merged: joinLines(oursOut),
				})
			} else {
				conflicts++
				writeConflict(&merged, oursOut, theirsOut)
				hunks = append(hunks, Hunk{
					Type: HunkConflict, Base: joinLines(baseRegion),
					Ours: joinLines(oursOut), Theirs: joinLines(theirsOut),
				})
			}
		}
	}

	return Result{
		Merged:       merged.Bytes(),
		HasConflicts: conflicts > 0,
		Conflicts:    conflicts,
		Hunks:        hunks,
	}
}

func writeLines(buf *bytes.Buffer, lines []string) {
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
}

func writeConflict(buf *bytes.Buffer, oursLines, theirsLines []string) {
	buf.WriteString(MarkerOurs + "\n")
	writeLines(buf, oursLines)
	buf.WriteString(MarkerSep + "\n")
	writeLines(buf, theirsLines)
	buf.WriteString(MarkerTheirs + "\n")
}

func cleanHunk(baseLines []string, c *chunk) Hunk {
	h := Hunk{
		Type:   HunkClean,
		Merged: joinLines(c.lines),
	}
	if c.baseStart < c.baseEnd {
		h.Base = joinLines(baseLines[c.baseStart:c.baseEnd])
	}
	if c.changed {
		h.Ours = joinLines(c.lines)
	}
	return h
}

func conflictHunk(baseLines []string, oc, tc *chunk) Hunk {
	h := Hunk{
		Type:   HunkConflict,
		Ours:   joinLines(oc.lines),
		Theirs: joinLines(tc.lines),
	}
	if oc.baseStart < oc.baseEnd {
		h.Base = joinLines(baseLines[oc.baseStart:oc.baseEnd])
	}
	return h
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	writeLines(&buf, lines)
	return buf.Bytes()
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func assembleRegion(chunks []chunk) []string {
	var lines []string
	for _, c := range chunks {
		lines = append(lines, c.lines...)
	}
	return lines
}

func anyChanged(chunks []chunk) bool {
	for _, c := range chunks {
		if c.changed {
			return true
		}
	}
	return false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
