// Package mapfile parses the virtual-mapping file format (§6): a small
// line-oriented format driving which physical paths get linked into
// the virtual tree before a process starts.
//
// Grounded on avfs's own line-oriented config reader idiom
// (avfs/vfs/memfs reads no such format, but rclone's config/ini
// parsing in the retrieval pack and moby's Dockerfile-style
// instruction parsers both read "directive at column 0, indented
// continuation lines beneath it" formats line-by-line with a
// bufio.Scanner) — this package follows that same shape rather than
// pulling in a general-purpose ini/yaml library, since the format is
// bespoke to this spec.
package mapfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/usvfs-go/usvfs/tree"
)

// Kind identifies which of the three directives produced a Directive.
type Kind int

const (
	MapDir Kind = iota
	MapDirCreate
	MapFile
)

func (k Kind) String() string {
	switch k {
	case MapDir:
		return "mapdir"
	case MapDirCreate:
		return "mapdircreate"
	case MapFile:
		return "mapfile"
	default:
		return "unknown"
	}
}

// Directive is one parsed `mapdir`/`mapdircreate`/`mapfile` block: the
// virtual destination named on the directive line, and the physical
// source paths (relative to base) indented beneath it.
type Directive struct {
	Kind    Kind
	Virtual string
	Sources []string
}

// LinkFlags returns the tree.LinkFlags implied by the directive kind
// (§4.7): mapdircreate sets LinkFlagCreateTarget, matching
// VirtualLinkDirectoryStatic's flags argument in §6.
func (d Directive) LinkFlags() tree.LinkFlags {
	if d.Kind == MapDirCreate {
		return tree.LinkFlagCreateTarget
	}

	return 0
}

// Load parses the mapping-file format from r (§4.7, §6). base is
// prepended to each indented source line to form the physical path
// passed to tree.LinkFile/LinkDirectoryStatic.
func Load(r io.Reader, base string) ([]Directive, error) {
	scanner := bufio.NewScanner(r)

	var (
		directives []Directive
		current    *Directive
	)

	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := stripComment(scanner.Text())
		if strings.TrimSpace(line) == "" {
			continue
		}

		if isIndented(line) {
			if current == nil {
				return nil, fmt.Errorf("mapfile: line %d: indented source line with no preceding directive", lineNo)
			}

			src := joinBase(base, strings.TrimSpace(line))
			current.Sources = append(current.Sources, src)

			continue
		}

		if current != nil {
			directives = append(directives, *current)
			current = nil
		}

		kind, virtual, err := parseDirectiveLine(line)
		if err != nil {
			return nil, fmt.Errorf("mapfile: line %d: %w", lineNo, err)
		}

		current = &Directive{Kind: kind, Virtual: virtual}
	}

	if current != nil {
		directives = append(directives, *current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mapfile: %w", err)
	}

	return directives, nil
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}

	return line
}

func isIndented(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

func parseDirectiveLine(line string) (Kind, string, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("expected '<directive> <virtual-path>', got %q", line)
	}

	switch fields[0] {
	case "mapdir":
		return MapDir, fields[1], nil
	case "mapdircreate":
		return MapDirCreate, fields[1], nil
	case "mapfile":
		return MapFile, fields[1], nil
	default:
		return 0, "", fmt.Errorf("unknown directive %q", fields[0])
	}
}

func joinBase(base, rel string) string {
	if base == "" {
		return rel
	}

	return strings.TrimRight(base, `\/`) + `\` + rel
}
