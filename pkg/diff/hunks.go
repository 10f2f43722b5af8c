package diff

// DefaultContext is the number of unchanged lines surrounding a hunk.
const DefaultContext = 3

// Hunk is a group of nearby edits plus surrounding context, carrying the
// 1-based start line and line count on each side.
type Hunk struct {
	OldStart, OldLines int
	NewStart, NewLines int
	Ops                []Op
}

// BuildHunks groups an edit script into hunks with the given number of
// context lines. Hunks whose context ranges touch or overlap are merged
// into one. A script with no edits yields no hunks.
func BuildHunks(ops []Op, context int) []Hunk {
	if context < 0 {
		context = DefaultContext
	}

	// Indices of non-equal ops.
	var changes []int
	for i, op := range ops {
		if op.Kind != OpEqual {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	// Group changes whose surrounding context would touch or overlap.
	// idx-cur.last-1 equal lines sit between the two changes.
	type span struct{ first, last int }
	var spans []span
	cur := span{first: changes[0], last: changes[0]}
	for _, idx := range changes[1:] {
		if idx-cur.last-1 <= 2*context {
			cur.last = idx
			continue
		}
		spans = append(spans, cur)
		cur = span{first: idx, last: idx}
	}
	spans = append(spans, cur)

	// Precompute, for each op index, how many old/new lines precede it.
	oldBefore := make([]int, len(ops)+1)
	newBefore := make([]int, len(ops)+1)
	for i, op := range ops {
		oldBefore[i+1] = oldBefore[i]
		newBefore[i+1] = newBefore[i]
		switch op.Kind {
		case OpEqual:
			oldBefore[i+1]++
			newBefore[i+1]++
		case OpDelete:
			oldBefore[i+1]++
		case OpInsert:
			newBefore[i+1]++
		}
	}

	hunks := make([]Hunk, 0, len(spans))
	for _, sp := range spans {
		start := sp.first - context
		if start < 0 {
			start = 0
		}
		end := sp.last + context
		if end > len(ops)-1 {
			end = len(ops) - 1
		}

		h := Hunk{
			OldLines: oldBefore[end+1] - oldBefore[start],
			NewLines: newBefore[end+1] - newBefore[start],
			Ops:      ops[start : end+1],
		}
		// Unified convention: a side with zero lines reports the line
		// before the hunk; otherwise the first line inside it.
		h.OldStart = oldBefore[start]
		if h.OldLines > 0 {
			h.OldStart++
		}
		h.NewStart = newBefore[start]
		if h.NewLines > 0 {
			h.NewStart++
		}
		hunks = append(hunks, h)
	}
	return hunks
}
