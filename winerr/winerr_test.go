package winerr_test

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/usvfs-go/usvfs/winerr"
)

func TestIs(t *testing.T) {
	cases := []struct {
		code   winerr.Code
		target error
		want   bool
	}{
		{code: winerr.FileNotFound, target: fs.ErrNotExist, want: true},
		{code: winerr.PathNotFound, target: fs.ErrNotExist, want: true},
		{code: winerr.AccessDenied, target: fs.ErrPermission, want: true},
		{code: winerr.FileExists, target: fs.ErrExist, want: true},
		{code: winerr.FileNotFound, target: fs.ErrExist, want: false},
	}

	for _, c := range cases {
		if got := errors.Is(c.code, c.target); got != c.want {
			t.Errorf("errors.Is(%v, %v) = %v, want %v", c.code, c.target, got, c.want)
		}
	}
}

func TestErrorStrings(t *testing.T) {
	if winerr.FileNotFound.Error() == "" {
		t.Errorf("expected a non-empty error string")
	}

	if winerr.Code(999999).Error() == "" {
		t.Errorf("unknown code should still render a string")
	}
}
