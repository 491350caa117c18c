package usvfstest

import "github.com/usvfs-go/usvfs/tree"

// FakeDir is an in-memory tree.DirReader fixture, keyed by physical
// directory path, for tests exercising LinkDirectoryStatic's recursive
// walk without touching the real filesystem.
type FakeDir map[string][]tree.DirEntry

// Reader returns a tree.DirReader backed by fd.
func (fd FakeDir) Reader() tree.DirReader {
	return func(dir string) ([]tree.DirEntry, error) {
		return fd[dir], nil
	}
}
