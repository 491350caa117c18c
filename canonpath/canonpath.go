// Package canonpath implements the path canonicalizer (component C1).
//
// canonicalize is a pure function: given a caller-supplied Windows-style
// path it never touches the filesystem except, when the path is relative,
// through a caller-supplied FullPathName callback that stands in for the
// OS "get full path name" routine. The callback exists so the
// canonicalizer can be guarded against recursion into a hooked API (see
// the FULL_PATHNAME mutex group in package usvfsctx) without this
// package needing to know anything about hooking.
package canonpath

import (
	"strings"
)

// Separator is the canonical path separator. USVFS always normalizes to
// backslash, regardless of the separator the caller used.
const Separator = '\\'

// maxPath mirrors the Windows MAX_PATH threshold (§4.3 step 5).
const maxPath = 260

// longPathPrefix is prepended to a canonicalized result that would
// otherwise be at or beyond MAX_PATH.
const longPathPrefix = `\\?\`

// FullPathName resolves path to an absolute path relative to the
// caller's real current directory, the way the Windows GetFullPathName
// API does. It is supplied by the caller of Canonicalize (ultimately the
// dispatch package) so this package stays free of any dependency on the
// hooked API surface.
type FullPathName func(path string) (string, error)

// Canonicalize implements §4.1:
//
//  1. Strip a `\\?\` or `\??\` prefix.
//  2. Rewrite `\\localhost\C$\...` / `\\127.0.0.1\C$\...` to `C:\...`.
//  3. Pass through empty paths, and paths whose second character is
//     already `:` (already drive-relative).
//  4. Otherwise resolve to an absolute path via fullPathName.
//  5. Lexically normalize (`.`/`..` folded, no trailing `.` filename,
//     `/` replaced by `\`).
func Canonicalize(path string, fullPathName FullPathName) string {
	if path == "" {
		return path
	}

	if rest, ok := stripDevicePrefix(path); ok {
		path = rest
	} else if rewritten, ok := rewriteLocalhostShare(path); ok {
		path = rewritten
	} else if len(path) < 2 || path[1] != ':' {
		if fullPathName != nil {
			if abs, err := fullPathName(path); err == nil {
				path = abs
			}
		}
	}

	path = ToBackslash(path)
	path = Clean(path)
	path = trimTrailingDotName(path)
	path = upperDriveLetter(path)

	return path
}

// upperDriveLetter upper-cases a leading drive letter so two paths
// that differ only in drive-letter case compare equal (§4.1 "upper-
// case the drive letter for comparison"; the §8 invariant that an
// absolute, drive-lettered canonical path always carries an
// upper-cased drive letter).
func upperDriveLetter(path string) string {
	if len(path) >= 2 && path[1] == ':' {
		return string(upper(path[0])) + path[1:]
	}

	return path
}

// stripDevicePrefix drops a leading `\\?\` or `\??\`, 4 characters
// exactly, per §4.1 step 1.
func stripDevicePrefix(path string) (string, bool) {
	if len(path) >= 4 && path[0] == '\\' && (path[1] == '\\' || path[1] == '?') && path[2] == '?' && path[3] == '\\' {
		return path[4:], true
	}

	return path, false
}

// rewriteLocalhostShare rewrites `\\localhost\C$\...` or
// `\\127.0.0.1\C$\...` to `C:\...` per §4.1 step 2. The share name must
// be a single letter followed by `$`.
func rewriteLocalhostShare(path string) (string, bool) {
	for _, host := range []string{`\\localhost\`, `\\127.0.0.1\`} {
		if !strings.HasPrefix(strings.ToLower(path), strings.ToLower(host)) {
			continue
		}

		rest := path[len(host):]
		if len(rest) < 2 || rest[1] != '$' {
			continue
		}

		letter := rest[0]
		if upper(letter) < 'A' || upper(letter) > 'Z' {
			continue
		}

		tail := rest[2:]

		if tail == "" {
			return string(letter) + ":\\", true
		}

		if tail[0] != '\\' {
			continue
		}

		return string(letter) + ":" + tail, true
	}

	return path, false
}

// trimTrailingDotName drops a trailing "." path element, e.g. `C:\a\.`
// becomes `C:\a`, matching Windows' own normalization of a bare dot
// filename at the end of a path.
func trimTrailingDotName(path string) string {
	if path == "." {
		return path
	}

	if strings.HasSuffix(path, `\.`) {
		return strings.TrimSuffix(path, `\.`)
	}

	return path
}

// ToBackslash replaces every forward slash with a backslash.
func ToBackslash(path string) string {
	if !strings.ContainsRune(path, '/') {
		return path
	}

	return strings.ReplaceAll(path, "/", string(Separator))
}

// ApplyLongPathPrefix prefixes result with `\\?\` when it is at or beyond
// MAX_PATH and doesn't already carry the prefix, per §4.3 step 5.
func ApplyLongPathPrefix(result string) string {
	if len(result) >= maxPath && !strings.HasPrefix(result, longPathPrefix) {
		return longPathPrefix + result
	}

	return result
}

// DriveLetter returns the upper-cased drive letter of an already
// canonicalized absolute path, or 0 if it has none. Grounded on
// pathNameDriveLetter in the original hooks/kernel32.cpp: the two
// recognized shapes are `C:\...` and the NT device form `\??\C:\...`
// (already stripped to `C:\...` by Canonicalize by the time this is
// called in practice, but both are accepted defensively).
func DriveLetter(path string) byte {
	if len(path) >= 2 && path[1] == ':' {
		return upper(path[0])
	}

	if len(path) >= 6 && path[0] == '\\' && path[3] == '\\' && path[5] == ':' {
		return upper(path[4])
	}

	return 0
}

// OnDifferentDrives reports whether two canonicalized paths carry
// different, both-known drive letters. Grounded on
// pathesOnDifferentDrives in the original hooks/kernel32.cpp, used by
// the dispatcher to decide whether a move needs MOVEFILE_COPY_ALLOWED
// (§4.4 "Move across virtual drives").
func OnDifferentDrives(path1, path2 string) bool {
	d1 := DriveLetter(path1)
	d2 := DriveLetter(path2)

	return d1 != 0 && d2 != 0 && d1 != d2
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}

	return c
}

// EqualFold reports whether two path segments are equal under Windows'
// case-insensitive, case-fold comparison (§2 C2, §4.2 "Ordering and
// tie-breaks").
func EqualFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
