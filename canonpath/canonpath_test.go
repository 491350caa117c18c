package canonpath_test

import (
	"strings"
	"testing"

	"github.com/usvfs-go/usvfs/canonpath"
)

func TestCanonicalizeStripsDevicePrefix(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{path: `\\?\C:\Windows\notepad.exe`, want: `C:\Windows\notepad.exe`},
		{path: `\??\C:\Windows`, want: `C:\Windows`},
	}

	for _, c := range cases {
		got := canonpath.Canonicalize(c.path, nil)
		if got != c.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestCanonicalizeRewritesLocalhostShare(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{path: `\\localhost\C$\Windows`, want: `C:\Windows`},
		{path: `\\127.0.0.1\D$\data`, want: `D:\data`},
		{path: `\\localhost\C$`, want: `C:\`},
	}

	for _, c := range cases {
		got := canonpath.Canonicalize(c.path, nil)
		if got != c.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestCanonicalizeUppercasesDriveLetter(t *testing.T) {
	if got := canonpath.Canonicalize(`c:\foo`, nil); got != `C:\foo` {
		t.Errorf("Canonicalize(%q) = %q, want an upper-cased drive letter", `c:\foo`, got)
	}
}

func TestCanonicalizePassthroughEmpty(t *testing.T) {
	if got := canonpath.Canonicalize("", nil); got != "" {
		t.Errorf("Canonicalize(\"\") = %q, want empty", got)
	}
}

func TestCanonicalizeResolvesRelative(t *testing.T) {
	full := func(path string) (string, error) {
		return `C:\cwd\` + path, nil
	}

	got := canonpath.Canonicalize(`sub\file.txt`, full)
	want := `C:\cwd\sub\file.txt`

	if got != want {
		t.Errorf("Canonicalize relative = %q, want %q", got, want)
	}
}

// TestCanonicalizeUnderLink mirrors scenario 2 of §8: dot-dot-heavy paths
// under a link normalize to a clean absolute form with forward slashes
// folded to backslashes.
func TestCanonicalizeUnderLink(t *testing.T) {
	path := `C:\.\not/../logs\.\a\.\b\.\c\..\.\..\.\..\`
	got := canonpath.Canonicalize(path, nil)
	want := `C:\logs`

	if got != want {
		t.Errorf("Canonicalize(%q) = %q, want %q", path, got, want)
	}
}

func TestCanonicalizeNoDotDotSlashes(t *testing.T) {
	got := canonpath.Canonicalize(`C:\a\..\..\..\b`, nil)
	if strings.Contains(got, "..") {
		t.Errorf("Canonicalize result %q still contains ..", got)
	}

	if strings.Contains(got, "/") {
		t.Errorf("Canonicalize result %q still contains a forward slash", got)
	}
}

func TestApplyLongPathPrefix(t *testing.T) {
	short := `C:\a`
	if got := canonpath.ApplyLongPathPrefix(short); got != short {
		t.Errorf("short path got prefixed: %q", got)
	}

	long := `C:\` + strings.Repeat("a", 260)
	got := canonpath.ApplyLongPathPrefix(long)

	if !strings.HasPrefix(got, `\\?\`) {
		t.Errorf("long path not prefixed: %q", got)
	}

	already := `\\?\` + long
	if got := canonpath.ApplyLongPathPrefix(already); got != already {
		t.Errorf("already-prefixed path got double-prefixed: %q", got)
	}
}

func TestDriveLetterAndOnDifferentDrives(t *testing.T) {
	if dl := canonpath.DriveLetter(`c:\foo`); dl != 'C' {
		t.Errorf("DriveLetter lower-case = %q, want 'C'", dl)
	}

	if canonpath.DriveLetter(`\\share\path`) != 0 {
		t.Errorf("UNC path should have no drive letter")
	}

	if !canonpath.OnDifferentDrives(`C:\a`, `D:\b`) {
		t.Errorf("expected different drives")
	}

	if canonpath.OnDifferentDrives(`C:\a`, `C:\b`) {
		t.Errorf("expected same drive")
	}
}

func TestSegments(t *testing.T) {
	cases := []struct {
		path string
		want []string
	}{
		{path: `C:\`, want: nil},
		{path: `C:\Users`, want: []string{"Users"}},
		{path: `C:\Users\bob\file.txt`, want: []string{"Users", "bob", "file.txt"}},
	}

	for _, c := range cases {
		got := canonpath.Segments(c.path)
		if len(got) != len(c.want) {
			t.Fatalf("Segments(%q) = %v, want %v", c.path, got, c.want)
		}

		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("Segments(%q)[%d] = %q, want %q", c.path, i, got[i], c.want[i])
			}
		}
	}
}

func TestTrimPrefix(t *testing.T) {
	tail, ok := canonpath.TrimPrefix(`C:\mount\new\file.txt`, `C:\mount`)
	if !ok || tail != `new\file.txt` {
		t.Errorf("TrimPrefix = %q, %v, want new\\file.txt, true", tail, ok)
	}

	if _, ok := canonpath.TrimPrefix(`C:\other\file.txt`, `C:\mount`); ok {
		t.Errorf("TrimPrefix should not match a sibling directory")
	}
}

func TestEqualFold(t *testing.T) {
	if !canonpath.EqualFold("Readme.TXT", "readme.txt") {
		t.Errorf("expected case-insensitive match")
	}

	if canonpath.EqualFold("a.txt", "b.txt") {
		t.Errorf("expected no match for distinct names")
	}
}

func TestCacheHitsSkipFullPathName(t *testing.T) {
	calls := 0
	full := func(path string) (string, error) {
		calls++
		return `C:\cwd\` + path, nil
	}

	c := canonpath.NewCache(8)

	first := c.CanonicalizeCached(`sub\a.txt`, full)
	second := c.CanonicalizeCached(`sub\a.txt`, full)

	if first != second {
		t.Fatalf("cached results differ: %q vs %q", first, second)
	}

	if calls != 1 {
		t.Errorf("fullPathName called %d times, want 1 (second lookup should hit the cache)", calls)
	}
}

func TestCacheInvalidate(t *testing.T) {
	calls := 0
	full := func(path string) (string, error) {
		calls++
		return `C:\cwd\` + path, nil
	}

	c := canonpath.NewCache(8)
	c.CanonicalizeCached(`a.txt`, full)
	c.Invalidate()
	c.CanonicalizeCached(`a.txt`, full)

	if calls != 2 {
		t.Errorf("fullPathName called %d times, want 2 after Invalidate", calls)
	}
}
