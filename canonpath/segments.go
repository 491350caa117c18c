package canonpath

import "strings"

// SegmentIterator iterates through the segments of an already
// canonicalized absolute path, skipping the volume name. It is the
// primitive the tree package walks on for find_node/visit_path (§4.2):
// for `C:\a\b\c` it yields "a", "b", "c" in order.
//
// Adapted from avfs's generic PathIterator (avfs/pathiterator.go),
// stripped of its VFS type parameter and ReplacePart/symlink-resolution
// methods (USVFS paths are never resolved through symlinks by this
// package — see MODULE reroute, which only ever follows tree links) and
// hardcoded to backslash and to a drive-letter volume name.
type SegmentIterator struct {
	path   string
	start  int
	end    int
	volLen int
}

// NewSegmentIterator creates a segment iterator over an absolute,
// canonicalized path.
func NewSegmentIterator(path string) *SegmentIterator {
	si := &SegmentIterator{path: path, volLen: volumeNameLen(path)}
	si.Reset()

	return si
}

func volumeNameLen(path string) int {
	if len(path) >= 2 && path[1] == ':' {
		return 2
	}

	return 0
}

// Reset rewinds the iterator to before the first segment.
func (si *SegmentIterator) Reset() {
	si.end = si.volLen
}

// Next advances to the next segment, returning false when exhausted.
func (si *SegmentIterator) Next() bool {
	si.start = si.end + 1
	if si.start >= len(si.path) {
		si.end = si.start

		return false
	}

	if pos := strings.IndexByte(si.path[si.start:], Separator); pos == -1 {
		si.end = len(si.path)
	} else {
		si.end = si.start + pos
	}

	return true
}

// Part returns the current segment.
func (si *SegmentIterator) Part() string {
	return si.path[si.start:si.end]
}

// IsLast reports whether the current segment is the final one.
func (si *SegmentIterator) IsLast() bool {
	return si.end == len(si.path)
}

// LeftPart returns the path up to and including the current segment.
func (si *SegmentIterator) LeftPart() string {
	return si.path[:si.end]
}

// VolumeName returns the leading drive-letter volume name, e.g. "C:".
func (si *SegmentIterator) VolumeName() string {
	return si.path[:si.volLen]
}

// Segments splits an absolute canonicalized path into its segments,
// excluding the volume name. `C:\a\b` -> ["a", "b"]. The root `C:\`
// yields an empty slice.
func Segments(path string) []string {
	var parts []string

	si := NewSegmentIterator(path)
	for si.Next() {
		parts = append(parts, si.Part())
	}

	return parts
}

// AllSegments splits an absolute canonicalized path into its segments,
// with the volume name (e.g. "C:") as the first element when present.
// This is the path the tree package actually walks: the volume is just
// the first level of children under the tree root.
func AllSegments(path string) []string {
	si := NewSegmentIterator(path)

	var parts []string
	if vol := si.VolumeName(); vol != "" {
		parts = append(parts, vol)
	}

	for si.Next() {
		parts = append(parts, si.Part())
	}

	return parts
}
