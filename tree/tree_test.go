package tree_test

import (
	"strings"
	"testing"

	"github.com/usvfs-go/usvfs/tree"
	"github.com/usvfs-go/usvfs/usvfstest"
)

func TestAddFileThenFindNode(t *testing.T) {
	tr := tree.New()

	n, err := tr.AddFile(`C:\mods\override\readme.txt`, `D:\data\readme.txt`)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	if n.LinkTarget() != `D:\data\readme.txt` {
		t.Fatalf("LinkTarget = %q", n.LinkTarget())
	}

	got, ok := tr.FindNode(`C:\mods\override\readme.txt`)
	if !ok {
		t.Fatalf("FindNode: not found")
	}

	if got != n {
		t.Fatalf("FindNode returned a different node")
	}

	if got.Path() != `C:\mods\override\readme.txt` {
		t.Fatalf("Path() = %q", got.Path())
	}
}

func TestFindNodeCaseInsensitive(t *testing.T) {
	tr := tree.New()

	if _, err := tr.AddFile(`C:\Mods\Readme.txt`, `D:\readme.txt`); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	if _, ok := tr.FindNode(`c:\mods\readme.txt`); !ok {
		t.Fatalf("FindNode should be case-insensitive")
	}
}

func TestFindNodeUnknownPath(t *testing.T) {
	tr := tree.New()

	if _, ok := tr.FindNode(`C:\nowhere`); ok {
		t.Fatalf("expected not found")
	}
}

// TestFindNodeIntermediateNotFound implements the §4.2 tie-break: a
// directory created only as a side effect of a deeper add_file, never
// itself linked, is not itself "found".
func TestFindNodeIntermediateNotFound(t *testing.T) {
	tr := tree.New()

	if _, err := tr.AddFile(`C:\a\b\c.txt`, `D:\c.txt`); err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	if _, ok := tr.FindNode(`C:\a`); ok {
		t.Fatalf("intermediate node C:\\a should not be found")
	}

	if _, ok := tr.FindNode(`C:\a\b`); ok {
		t.Fatalf("intermediate node C:\\a\\b should not be found")
	}

	if _, ok := tr.FindNode(`C:\a\b\c.txt`); !ok {
		t.Fatalf("leaf node should be found")
	}
}

// TestRemoveFromTreeRoundTrip is the literal §8 scenario: after
// add_file followed by remove_from_tree of the returned node, find_node
// for the original path returns none.
func TestRemoveFromTreeRoundTrip(t *testing.T) {
	tr := tree.New()

	n, err := tr.AddFile(`C:\mods\a.dll`, `D:\mod1\a.dll`)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}

	if err := tr.RemoveFromTree(n); err != nil {
		t.Fatalf("RemoveFromTree: %v", err)
	}

	if _, ok := tr.FindNode(`C:\mods\a.dll`); ok {
		t.Fatalf("node should be gone after remove_from_tree")
	}
}

func TestRemoveFromTreeTwiceFails(t *testing.T) {
	tr := tree.New()

	n, _ := tr.AddFile(`C:\a.txt`, `D:\a.txt`)

	if err := tr.RemoveFromTree(n); err != nil {
		t.Fatalf("first RemoveFromTree: %v", err)
	}

	if err := tr.RemoveFromTree(n); err == nil {
		t.Fatalf("second RemoveFromTree should fail")
	}
}

func TestAddFileReplaceWins(t *testing.T) {
	tr := tree.New()

	tr.AddFile(`C:\a.txt`, `D:\first.txt`)
	tr.AddFile(`C:\a.txt`, `D:\second.txt`)

	n, ok := tr.FindNode(`C:\a.txt`)
	if !ok {
		t.Fatalf("FindNode: not found")
	}

	if n.LinkTarget() != `D:\second.txt` {
		t.Fatalf("LinkTarget = %q, want the later write to win", n.LinkTarget())
	}
}

func TestVisitPathNearestCreateTarget(t *testing.T) {
	tr := tree.New()

	tr.LinkDirectoryStatic(`D:\shadow`, `C:\mods`, tree.LinkFlagCreateTarget, nil)
	tr.AddFile(`C:\mods\sub\existing.txt`, `D:\shadow\sub\existing.txt`)

	var seen []string

	tr.VisitPath(`C:\mods\sub\existing.txt`, func(n tree.NodeRef) {
		seen = append(seen, n.Name())
	})

	want := []string{"C:", "mods", "sub", "existing.txt"}
	if len(seen) != len(want) {
		t.Fatalf("VisitPath visited %v, want %v", seen, want)
	}

	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("VisitPath[%d] = %q, want %q", i, seen[i], want[i])
		}
	}

	var createTargetNode tree.NodeRef

	tr.VisitPath(`C:\mods\sub\existing.txt`, func(n tree.NodeRef) {
		if n.Flags().Has(tree.FlagCreateTarget) {
			createTargetNode = n
		}
	})

	if createTargetNode == nil || createTargetNode.Name() != "mods" {
		t.Fatalf("expected the mods node to carry FlagCreateTarget")
	}
}

// TestLinkDirectoryStaticRecursive is the round-trip property: every
// physical descendant surfaces as a tree node at the corresponding
// virtual path.
func TestLinkDirectoryStaticRecursive(t *testing.T) {
	tr := tree.New()

	fakeFS := usvfstest.FakeDir{
		`D:\real`:     {{Name: "a.txt"}, {Name: "sub", IsDir: true}},
		`D:\real\sub`: {{Name: "b.txt"}},
	}

	if _, err := tr.LinkDirectoryStatic(`D:\real`, `C:\virtual`, tree.LinkFlagRecursive, fakeFS.Reader()); err != nil {
		t.Fatalf("LinkDirectoryStatic: %v", err)
	}

	for _, path := range []string{`C:\virtual\a.txt`, `C:\virtual\sub`, `C:\virtual\sub\b.txt`} {
		if _, ok := tr.FindNode(path); !ok {
			t.Errorf("FindNode(%q): not found after recursive link", path)
		}
	}
}

func TestDump(t *testing.T) {
	tr := tree.New()
	tr.AddFile(`C:\a\b.txt`, `D:\b.txt`)

	out := tr.Dump()
	if !strings.Contains(out, "a") || !strings.Contains(out, "b.txt") || !strings.Contains(out, "D:\\b.txt") {
		t.Fatalf("Dump() = %q, missing expected content", out)
	}
}

func TestClear(t *testing.T) {
	tr := tree.New()
	tr.AddFile(`C:\a.txt`, `D:\a.txt`)
	tr.Clear()

	if _, ok := tr.FindNode(`C:\a.txt`); ok {
		t.Fatalf("expected empty tree after Clear")
	}
}
