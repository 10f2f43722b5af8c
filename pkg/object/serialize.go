package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted by Name so that two
// trees built from the same entry set in any insertion order produce
// identical bytes and therefore an identical hash. Each entry is one line:
//
//	mode hash name
//
// Duplicate names and names containing '/' or '\n' are rejected.
func MarshalTree(tr *TreeObj) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	prev := ""
	for i, e := range sorted {
		if err := validateTreeEntry(e); err != nil {
			return nil, fmt.Errorf("marshal tree: %w", err)
		}
		if i > 0 && e.Name == prev {
			return nil, fmt.Errorf("marshal tree: duplicate entry name %q", e.Name)
		}
		prev = e.Name
		fmt.Fprintf(&buf, "%s %s %s\n", e.Mode, string(e.Hash), e.Name)
	}
	return buf.Bytes(), nil
}

func validateTreeEntry(e TreeEntry) error {
	if e.Name == "" {
		return fmt.Errorf("empty entry name")
	}
	if strings.ContainsAny(e.Name, "/\n") {
		return fmt.Errorf("invalid entry name %q", e.Name)
	}
	switch e.Mode {
	case ModeDir, ModeFile, ModeExecutable, ModeSymlink, ModeSubmodule:
	default:
		return fmt.Errorf("unknown mode %q for entry %q", e.Mode, e.Name)
	}
	if !ValidHash(string(e.Hash)) {
		return fmt.Errorf("invalid hash %q for entry %q", e.Hash, e.Name)
	}
	return nil
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return tr, nil
	}

	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
		entry := TreeEntry{
			Mode: parts[0],
			Hash: Hash(parts[1]),
			Name: parts[2],
		}
		if err := validateTreeEntry(entry); err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		if _, dup := seen[entry.Name]; dup {
			return nil, fmt.Errorf("unmarshal tree: duplicate entry name %q", entry.Name)
		}
		seen[entry.Name] = struct{}{}
		tr.Entries = append(tr.Entries, entry)
	}

	if !sort.SliceIsSorted(tr.Entries, func(i, j int) bool {
		return tr.Entries[i].Name < tr.Entries[j].Name
	}) {
		return nil, fmt.Errorf("unmarshal tree: entries not sorted by name")
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H        (zero or more)
//	author A
//	authortime T
//	committer C     (optional, defaults to author on read)
//	committime T
//	signature S     (optional)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "authortime %d\n", c.AuthorTime)
	if strings.TrimSpace(c.Committer) != "" {
		fmt.Fprintf(&buf, "committer %s\n", c.Committer)
		fmt.Fprintf(&buf, "committime %d\n", c.CommitterTime)
	}
	if strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(&buf, "signature %s\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author = val
		case "authortime":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad authortime %q: %w", val, err)
			}
			c.AuthorTime = ts
		case "committer":
			c.Committer = val
		case "committime":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad committime %q: %w", val, err)
			}
			c.CommitterTime = ts
		case "signature":
			c.Signature = val
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	if !ValidHash(string(c.TreeHash)) {
		return nil, fmt.Errorf("unmarshal commit: invalid tree hash %q", c.TreeHash)
	}
	for _, p := range c.Parents {
		if !ValidHash(string(p)) {
			return nil, fmt.Errorf("unmarshal commit: invalid parent hash %q", p)
		}
	}
	if c.Committer == "" {
		c.Committer = c.Author
		c.CommitterTime = c.AuthorTime
	}
	return c, nil
}

// SigningPayload returns the canonical bytes covered by a commit signature:
// the serialized commit with the signature header omitted.
func SigningPayload(c *CommitObj) []byte {
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}

// ---------------------------------------------------------------------------
// TagObj
// ---------------------------------------------------------------------------

// MarshalTag serializes a TagObj:
//
//	object H
//	type T
//	tag NAME
//	tagger WHO
//	tagtime T
//
//	message
func MarshalTag(t *TagObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", string(t.TargetHash))
	fmt.Fprintf(&buf, "type %s\n", t.TargetType)
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", t.Tagger)
	fmt.Fprintf(&buf, "tagtime %d\n", t.TagTime)
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses a TagObj from its serialized form.
func UnmarshalTag(data []byte) (*TagObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal tag: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	t := &TagObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal tag: malformed header line %q", line)
		}
		switch key {
		case "object":
			t.TargetHash = Hash(val)
		case "type":
			t.TargetType = Type(val)
		case "tag":
			t.Name = val
		case "tagger":
			t.Tagger = val
		case "tagtime":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tag: bad tagtime %q: %w", val, err)
			}
			t.TagTime = ts
		default:
			return nil, fmt.Errorf("unmarshal tag: unknown header key %q", key)
		}
	}
	if !ValidHash(string(t.TargetHash)) {
		return nil, fmt.Errorf("unmarshal tag: invalid target hash %q", t.TargetHash)
	}
	return t, nil
}
