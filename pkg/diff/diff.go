// Package diff computes line-level differences between two text buffers and
// renders them as unified-diff hunks. It is pure: callers fetch blob content
// from the object store themselves and pass in-memory bytes.
package diff

import (
	"bytes"
	"strings"

	"github.com/gritvcs/grit/pkg/diff3"
)

// OpKind classifies a single line in an edit script.
type OpKind int

const (
	OpEqual OpKind = iota
	OpDelete
	OpInsert
)

// Op is one line-level edit operation.
type Op struct {
	Kind OpKind
	Text string
}

// Lines computes the line-level edit script transforming oldData into
// newData. Deterministic for identical inputs.
func Lines(oldData, newData []byte) []Op {
	aLines := splitLines(oldData)
	bLines := splitLines(newData)

	raw := diff3.MyersDiff(aLines, bLines)
	ops := make([]Op, len(raw))
	for i, op := range raw {
		switch op.Type {
		case diff3.Delete:
			ops[i] = Op{Kind: OpDelete, Text: op.Line}
		case diff3.Insert:
			ops[i] = Op{Kind: OpInsert, Text: op.Line}
		default:
			ops[i] = Op{Kind: OpEqual, Text: op.Line}
		}
	}
	return ops
}

// IsBinary reports whether data should be treated as binary content.
// Like Git, the presence of a NUL byte decides.
func IsBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
