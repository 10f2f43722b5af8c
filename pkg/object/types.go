package object

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// Short returns an abbreviated form of the hash for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// Type identifies the kind of object stored.
type Type string

const (
	TypeBlob   Type = "blob"
	TypeTree   Type = "tree"
	TypeCommit Type = "commit"
	TypeTag    Type = "tag"
)

// Tree entry mode constants, compatible with Git's canonical mode strings.
const (
	ModeDir        = "40000"
	ModeFile       = "100644"
	ModeExecutable = "100755"
	ModeSymlink    = "120000"
	ModeSubmodule  = "160000"
)

// TreeEntry is one entry in a tree object. For ModeDir the hash points at a
// tree object; for ModeSubmodule it is the pinned commit hash; for every
// other mode it points at a blob.
type TreeEntry struct {
	Name string
	Mode string
	Hash Hash
}

// IsDir reports whether the entry names a subtree.
func (e TreeEntry) IsDir() bool { return e.Mode == ModeDir }

// TreeObj holds a directory listing sorted by entry name.
type TreeObj struct {
	Entries []TreeEntry
}

// CommitObj points at a tree snapshot plus zero or more parents.
type CommitObj struct {
	TreeHash      Hash
	Parents       []Hash
	Author        string
	AuthorTime    int64
	Committer     string
	CommitterTime int64
	Signature     string
	Message       string
}

// TagObj is an annotated tag pointing at another object.
type TagObj struct {
	TargetHash Hash
	TargetType Type
	Name       string
	Tagger     string
	TagTime    int64
	Message    string
}
