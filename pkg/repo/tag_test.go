package repo

import (
	"reflect"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
)

func TestCreateTag_Lightweight(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))
	first := mustCommit(t, r, "first")

	if err := r.CreateTag("v1", first, false); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	got, err := r.ResolveTag("v1")
	if err != nil {
		t.Fatalf("ResolveTag: %v", err)
	}
	if got != first {
		t.Fatalf("tag target = %s, want %s", got, first)
	}
}

func TestCreateTag_DuplicateRequiresForce(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))
	first := mustCommit(t, r, "first")
	writeAndAdd(t, r, "a.txt", []byte("two\n"))
	second := mustCommit(t, r, "second")

	if err := r.CreateTag("v1", first, false); err != nil {
		t.Fatal(err)
	}
	if err := r.CreateTag("v1", second, false); err == nil {
		t.Fatalf("expected duplicate tag to be rejected")
	}
	if err := r.CreateTag("v1", second, true); err != nil {
		t.Fatalf("CreateTag force: %v", err)
	}

	got, err := r.ResolveTag("v1")
	if err != nil {
		t.Fatal(err)
	}
	if got != second {
		t.Fatalf("forced tag target = %s, want %s", got, second)
	}
}

func TestCreateAnnotatedTag_WritesTagObject(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))
	first := mustCommit(t, r, "first")

	tagHash, err := r.CreateAnnotatedTag("v1.0", first, "tagger <t@example.com>", "release v1.0", false)
	if err != nil {
		t.Fatalf("CreateAnnotatedTag: %v", err)
	}

	tag, err := object.ReadTag(r.Store, tagHash)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if tag.Name != "v1.0" {
		t.Fatalf("tag name = %q, want %q", tag.Name, "v1.0")
	}
	if tag.Message != "release v1.0" {
		t.Fatalf("tag message = %q", tag.Message)
	}
	if tag.TargetHash != first {
		t.Fatalf("tag target = %s, want %s", tag.TargetHash, first)
	}
	if tag.TargetType != object.TypeCommit {
		t.Fatalf("tag target type = %s, want commit", tag.TargetType)
	}

	// The ref stores the tag object, not the commit.
	refTarget, err := r.ResolveTag("v1.0")
	if err != nil {
		t.Fatal(err)
	}
	if refTarget != tagHash {
		t.Fatalf("ref target = %s, want tag object %s", refTarget, tagHash)
	}

	// Peeling reaches the tagged commit.
	peeled, err := r.ResolveCommit("refs/tags/v1.0")
	if err != nil {
		t.Fatalf("ResolveCommit: %v", err)
	}
	if peeled != first {
		t.Fatalf("peeled = %s, want %s", peeled, first)
	}
}

func TestDeleteTag(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))
	first := mustCommit(t, r, "first")

	if err := r.CreateTag("v1", first, false); err != nil {
		t.Fatal(err)
	}
	if err := r.DeleteTag("v1"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if _, err := r.ResolveTag("v1"); err == nil {
		t.Fatalf("expected deleted tag to be unresolvable")
	}
	if err := r.DeleteTag("v1"); err == nil {
		t.Fatalf("expected deleting a missing tag to fail")
	}
}

func TestListTags_Sorted(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))
	first := mustCommit(t, r, "first")

	for _, name := range []string{"v2", "v1", "release/beta"} {
		if err := r.CreateTag(name, first, false); err != nil {
			t.Fatalf("CreateTag %s: %v", name, err)
		}
	}

	tags, err := r.ListTags()
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	want := []string{"release/beta", "v1", "v2"}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
}

func TestCreateTag_RejectsInvalidNames(t *testing.T) {
	r := initRepoWithFile(t, "a.txt", []byte("one\n"))
	first := mustCommit(t, r, "first")

	for _, name := range []string{"", "/v1", "v1/", "a..b", "has space"} {
		if err := r.CreateTag(name, first, false); err == nil {
			t.Fatalf("expected tag name %q to be rejected", name)
		}
	}
}
