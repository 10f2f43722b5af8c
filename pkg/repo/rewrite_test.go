package repo

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
)

func TestCherryPick_CleanApply(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("base\n"))
	base := mustCommit(t, r, "base")

	if err := r.CreateBranch("side", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("side"); err != nil {
		t.Fatalf("Checkout(side): %v", err)
	}
	writeAndAdd(t, r, "picked.txt", []byte("picked content\n"))
	sideCommit := mustCommit(t, r, "add picked file")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	writeAndAdd(t, r, "a.txt", []byte("main moved on\n"))
	mainTip := mustCommit(t, r, "main work")

	res, err := r.CherryPick([]string{string(sideCommit)}, "picker", false)
	if err != nil {
		t.Fatalf("CherryPick: %v", err)
	}
	if !res.Done || len(res.NewCommits) != 1 {
		t.Fatalf("result = %+v", res)
	}

	c, err := object.ReadCommit(r.Store, res.NewCommits[0])
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Message != "add picked file" {
		t.Errorf("Message = %q, want original", c.Message)
	}
	if c.Author != "test-author" {
		t.Errorf("Author = %q, want original author", c.Author)
	}
	if len(c.Parents) != 1 || c.Parents[0] != mainTip {
		t.Errorf("Parents = %v, want [%s]", c.Parents, mainTip)
	}

	if got := readWorktreeFile(t, r, "picked.txt"); string(got) != "picked content\n" {
		t.Fatalf("picked.txt = %q", got)
	}
	if got := readWorktreeFile(t, r, "a.txt"); string(got) != "main moved on\n" {
		t.Fatalf("a.txt = %q, cherry-pick clobbered unrelated file", got)
	}
}

func TestCherryPick_NoCommitAccumulates(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("base\n"))
	base := mustCommit(t, r, "base")

	if err := r.CreateBranch("side", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("side"); err != nil {
		t.Fatalf("Checkout(side): %v", err)
	}
	writeAndAdd(t, r, "one.txt", []byte("one\n"))
	c1 := mustCommit(t, r, "add one")
	writeAndAdd(t, r, "two.txt", []byte("two\n"))
	c2 := mustCommit(t, r, "add two")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	res, err := r.CherryPick([]string{string(c1), string(c2)}, "picker", true)
	if err != nil {
		t.Fatalf("CherryPick -n: %v", err)
	}
	if !res.Done || len(res.NewCommits) != 0 {
		t.Fatalf("result = %+v, want done with no commits", res)
	}

	// Both changes staged, HEAD untouched.
	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	if head != base {
		t.Fatalf("HEAD = %s, want unchanged %s", head, base)
	}
	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	for _, p := range []string{"one.txt", "two.txt"} {
		if _, ok := stg.Entries[p]; !ok {
			t.Errorf("%s not staged", p)
		}
	}
}

// conflictedCherryPick builds a cherry-pick that conflicts on line 1 of
// shared.txt and returns the repo, the picked commit, and the result.
func conflictedCherryPick(t *testing.T) (*Repo, object.Hash, *RewriteResult) {
	t.Helper()
	r := initRepoWithFile(t, "shared.txt", []byte("base\n"))
	base := mustCommit(t, r, "base")

	if err := r.CreateBranch("side", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("side"); err != nil {
		t.Fatalf("Checkout(side): %v", err)
	}
	writeAndAdd(t, r, "shared.txt", []byte("side version\n"))
	sideCommit := mustCommit(t, r, "side change")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	writeAndAdd(t, r, "shared.txt", []byte("main version\n"))
	mustCommit(t, r, "main change")

	res, err := r.CherryPick([]string{string(sideCommit)}, "picker", false)
	if err != nil {
		t.Fatalf("CherryPick: %v", err)
	}
	return r, sideCommit, res
}

func TestCherryPick_ConflictPausesThenContinues(t *testing.T) {
	r, sideCommit, res := conflictedCherryPick(t)

	if res.Stopped != sideCommit {
		t.Fatalf("Stopped = %s, want %s", res.Stopped, sideCommit)
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Path != "shared.txt" {
		t.Fatalf("conflicts = %+v", res.Conflicts)
	}

	pending, err := r.PendingOperation()
	if err != nil {
		t.Fatalf("PendingOperation: %v", err)
	}
	if pending == nil || pending.Kind != "cherry-pick" || pending.Current != sideCommit {
		t.Fatalf("pending = %+v", pending)
	}

	writeAndAdd(t, r, "shared.txt", []byte("resolved version\n"))
	cont, err := r.Continue()
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if !cont.Done || len(cont.NewCommits) != 1 {
		t.Fatalf("continue result = %+v", cont)
	}

	c, err := object.ReadCommit(r.Store, cont.NewCommits[0])
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if c.Message != "side change" {
		t.Errorf("Message = %q, want original", c.Message)
	}
	if got := readWorktreeFile(t, r, "shared.txt"); string(got) != "resolved version\n" {
		t.Fatalf("shared.txt = %q", got)
	}

	kind, err := r.OperationInProgress()
	if err != nil {
		t.Fatalf("OperationInProgress: %v", err)
	}
	if kind != "" {
		t.Fatalf("operation still pending: %q", kind)
	}
}

func TestCherryPick_SkipDropsStep(t *testing.T) {
	r, _, res := conflictedCherryPick(t)
	if len(res.Conflicts) == 0 {
		t.Fatal("setup produced no conflict")
	}

	headBefore, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}

	skipRes, err := r.Skip()
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if !skipRes.Done || len(skipRes.NewCommits) != 0 {
		t.Fatalf("skip result = %+v", skipRes)
	}

	headAfter, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if headAfter != headBefore {
		t.Fatalf("HEAD moved across skip: %s -> %s", headBefore, headAfter)
	}
	if got := readWorktreeFile(t, r, "shared.txt"); string(got) != "main version\n" {
		t.Fatalf("shared.txt = %q after skip", got)
	}
}

func TestCherryPick_AbortRestoresHead(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("base\n"))
	base := mustCommit(t, r, "base")

	if err := r.CreateBranch("side", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("side"); err != nil {
		t.Fatalf("Checkout(side): %v", err)
	}
	writeAndAdd(t, r, "clean.txt", []byte("applies cleanly\n"))
	clean := mustCommit(t, r, "clean step")
	writeAndAdd(t, r, "a.txt", []byte("side conflict\n"))
	conflicting := mustCommit(t, r, "conflicting step")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	writeAndAdd(t, r, "a.txt", []byte("main conflict\n"))
	mainTip := mustCommit(t, r, "main change")

	res, err := r.CherryPick([]string{string(clean), string(conflicting)}, "picker", false)
	if err != nil {
		t.Fatalf("CherryPick: %v", err)
	}
	if res.Done || len(res.NewCommits) != 1 {
		t.Fatalf("expected pause after one commit, got %+v", res)
	}

	if err := r.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if head != mainTip {
		t.Fatalf("HEAD = %s after abort, want %s", head, mainTip)
	}
	if _, err := os.Stat(filepath.Join(r.RootDir, "clean.txt")); !os.IsNotExist(err) {
		t.Fatalf("clean.txt survived abort, stat err=%v", err)
	}
	if got := readWorktreeFile(t, r, "a.txt"); string(got) != "main conflict\n" {
		t.Fatalf("a.txt = %q after abort", got)
	}
}

func TestRebase_ReplaysOntoTarget(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("base\n"))
	base := mustCommit(t, r, "base")

	if err := r.CreateBranch("feature", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	writeAndAdd(t, r, "f1.txt", []byte("first feature\n"))
	mustCommit(t, r, "feature one")
	writeAndAdd(t, r, "f2.txt", []byte("second feature\n"))
	mustCommit(t, r, "feature two")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	writeAndAdd(t, r, "main.txt", []byte("main advanced\n"))
	mainTip := mustCommit(t, r, "main work")

	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	res, err := r.Rebase("main", "", "rebaser")
	if err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	if !res.Done || len(res.NewCommits) != 2 {
		t.Fatalf("rebase result = %+v", res)
	}

	// HEAD re-attached to the branch.
	branch, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "feature" {
		t.Fatalf("CurrentBranch = %q, want feature", branch)
	}

	tip, err := r.ResolveRef("refs/heads/feature")
	if err != nil {
		t.Fatalf("ResolveRef(feature): %v", err)
	}
	entries, err := r.Log(tip, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	var messages []string
	for _, e := range entries {
		messages = append(messages, e.Commit.Message)
	}
	want := []string{"feature two", "feature one", "main work", "base"}
	if strings.Join(messages, "|") != strings.Join(want, "|") {
		t.Fatalf("history = %v, want %v", messages, want)
	}
	if entries[2].Hash != mainTip {
		t.Fatalf("replay base = %s, want %s", entries[2].Hash, mainTip)
	}

	// All files from both lines of history present.
	for name, content := range map[string]string{
		"f1.txt":   "first feature\n",
		"f2.txt":   "second feature\n",
		"main.txt": "main advanced\n",
		"a.txt":    "base\n",
	} {
		if got := readWorktreeFile(t, r, name); string(got) != content {
			t.Errorf("%s = %q, want %q", name, got, content)
		}
	}
}

func TestRebase_OntoExplicitRoot(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("base\n"))
	base := mustCommit(t, r, "base")

	if err := r.CreateBranch("topic", base); err != nil {
		t.Fatalf("CreateBranch(topic): %v", err)
	}
	if err := r.Checkout("topic"); err != nil {
		t.Fatalf("Checkout(topic): %v", err)
	}
	writeAndAdd(t, r, "topic.txt", []byte("topic work\n"))
	topicTip := mustCommit(t, r, "topic work")

	if err := r.CreateBranch("feature", topicTip); err != nil {
		t.Fatalf("CreateBranch(feature): %v", err)
	}
	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	writeAndAdd(t, r, "feature.txt", []byte("feature work\n"))
	mustCommit(t, r, "feature work")

	if err := r.Checkout("main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	writeAndAdd(t, r, "main.txt", []byte("main advanced\n"))
	mainTip := mustCommit(t, r, "main work")

	if err := r.Checkout("feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	// Replay only the commits past topic, rooted at main instead.
	res, err := r.Rebase("topic", "main", "rebaser")
	if err != nil {
		t.Fatalf("Rebase --onto: %v", err)
	}
	if !res.Done || len(res.NewCommits) != 1 {
		t.Fatalf("rebase result = %+v", res)
	}

	tip, err := r.ResolveRef("refs/heads/feature")
	if err != nil {
		t.Fatalf("ResolveRef(feature): %v", err)
	}
	entries, err := r.Log(tip, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	var messages []string
	for _, e := range entries {
		messages = append(messages, e.Commit.Message)
	}
	want := []string{"feature work", "main work", "base"}
	if strings.Join(messages, "|") != strings.Join(want, "|") {
		t.Fatalf("history = %v, want %v", messages, want)
	}
	if entries[1].Hash != mainTip {
		t.Fatalf("replay root = %s, want %s", entries[1].Hash, mainTip)
	}

	// The topic-only commit was left behind.
	if _, err := os.Stat(filepath.Join(r.RootDir, "topic.txt")); !os.IsNotExist(err) {
		t.Fatalf("topic.txt should not survive the replay, stat err = %v", err)
	}
	if got := readWorktreeFile(t, r, "feature.txt"); string(got) != "feature work\n" {
		t.Fatalf("feature.txt = %q", got)
	}
	if got := readWorktreeFile(t, r, "main.txt"); string(got) != "main advanced\n" {
		t.Fatalf("main.txt = %q", got)
	}
}

func TestRebase_FastForwardWhenBehind(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("base\n"))
	base := mustCommit(t, r, "base")

	if err := r.CreateBranch("lagging", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	writeAndAdd(t, r, "a.txt", []byte("ahead\n"))
	mainTip := mustCommit(t, r, "main ahead")

	if err := r.Checkout("lagging"); err != nil {
		t.Fatalf("Checkout(lagging): %v", err)
	}
	res, err := r.Rebase("main", "", "rebaser")
	if err != nil {
		t.Fatalf("Rebase: %v", err)
	}
	if !res.Done {
		t.Fatalf("result = %+v", res)
	}

	tip, err := r.ResolveRef("refs/heads/lagging")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if tip != mainTip {
		t.Fatalf("lagging = %s, want fast-forwarded to %s", tip, mainTip)
	}
}

func TestRebase_RequiresBranch(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))
	first := mustCommit(t, r, "first")
	writeAndAdd(t, r, "a.txt", []byte("two\n"))
	mustCommit(t, r, "second")

	if err := r.Checkout(string(first)); err != nil {
		t.Fatalf("Checkout(detached): %v", err)
	}
	if _, err := r.Rebase("main", "", "rebaser"); err == nil || !strings.Contains(err.Error(), "detached") {
		t.Fatalf("expected detached HEAD refusal, got: %v", err)
	}
}

func TestRevert_CreatesInverseCommit(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))
	mustCommit(t, r, "first")
	writeAndAdd(t, r, "a.txt", []byte("two\n"))
	second := mustCommit(t, r, "introduce two")

	res, err := r.Revert([]string{"HEAD"}, "reverter", false)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !res.Done || len(res.NewCommits) != 1 {
		t.Fatalf("result = %+v", res)
	}

	if got := readWorktreeFile(t, r, "a.txt"); string(got) != "one\n" {
		t.Fatalf("a.txt = %q after revert, want original", got)
	}

	c, err := object.ReadCommit(r.Store, res.NewCommits[0])
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if !strings.HasPrefix(c.Message, `Revert "introduce two"`) {
		t.Errorf("Message = %q", c.Message)
	}
	if !strings.Contains(c.Message, string(second)) {
		t.Errorf("Message %q does not name reverted commit", c.Message)
	}
	if len(c.Parents) != 1 || c.Parents[0] != second {
		t.Errorf("Parents = %v", c.Parents)
	}
}

func TestRewrite_RefusesConcurrentOperations(t *testing.T) {
	r, _, res := conflictedCherryPick(t)
	if len(res.Conflicts) == 0 {
		t.Fatal("setup produced no conflict")
	}

	if _, err := r.CherryPick([]string{"HEAD"}, "picker", false); !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("expected ErrOperationInProgress, got: %v", err)
	}
	if _, err := r.Rebase("main", "", "rebaser"); !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("rebase: expected ErrOperationInProgress, got: %v", err)
	}
	if err := r.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := r.Continue(); !errors.Is(err, ErrNoOperationInProgress) {
		t.Fatalf("expected ErrNoOperationInProgress, got: %v", err)
	}
}
