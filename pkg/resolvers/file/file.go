// Package file implements the file:// resolver: it resolves a reference's
// line range directly off the local filesystem. It never versions, since a
// local path carries no commit history of its own.
package file

import (
	"bufio"
	"context"
	"os"

	"github.com/archi-tools/inspector/internal/xerrors"
	"github.com/archi-tools/inspector/pkg/refurl"
	"github.com/archi-tools/inspector/pkg/resolver"
)

const Scheme = "file"

// Resolver reads reference content straight off disk.
type Resolver struct{}

// New returns a file:// resolver.
func New() *Resolver {
	return &Resolver{}
}

func (r *Resolver) Scheme() string { return Scheme }

// Resolve reads ref.Path and slices it to ref.Lines. A missing file resolves
// to (nil, nil) rather than an error, matching the original plugin's
// treatment of a dangling local reference as "nothing to compare against"
// instead of a hard failure.
func (r *Resolver) Resolve(ctx context.Context, ref refurl.Reference) (resolver.ResolveResult, error) {
	f, err := os.Open(ref.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, xerrors.FailedToWithDetails("open file reference", Scheme, ref.Path, err)
	}
	defer f.Close()

	var lines [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, append([]byte(nil), sc.Bytes()...))
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.FailedToWithDetails("read file reference", Scheme, ref.Path, err)
	}

	from, to := 1, len(lines)
	if ref.Lines != nil {
		from, to = ref.Lines.From, ref.Lines.To
	}
	if from < 1 {
		from = 1
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from > len(lines) || to < from {
		return resolver.Content{Bytes: nil}, nil
	}

	var out []byte
	for i := from - 1; i < to; i++ {
		if i > from-1 {
			out = append(out, '\n')
		}
		out = append(out, lines[i]...)
	}
	return resolver.Content{Bytes: out}, nil
}
