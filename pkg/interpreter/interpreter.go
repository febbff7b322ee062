// Package interpreter turns one raw command line into a response string by
// driving a kvindex.Index. It holds no state of its own: every call is a
// pure function of its inputs plus the index.
package interpreter

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"

	"github.com/leishu-qiu/kvlined/pkg/kvindex"
)

// Op identifies which verb a command line carried, for metrics labeling.
type Op string

const (
	OpQuery     Op = "query"
	OpAdd       Op = "add"
	OpDelete    Op = "delete"
	OpBatch     Op = "batch"
	OpIllFormed Op = "illformed"
)

// Response strings mandated by spec.md §4.2.
const (
	respIllFormed   = "ill-formed command"
	respNotFound    = "not found"
	respAdded       = "added"
	respDuplicate   = "already in database"
	respRemoved     = "removed"
	respNotInDB     = "not in database"
	respFileOK      = "file processed"
	respBadFileName = "bad file name"
)

// Interpret parses line into one command and executes it against idx,
// returning the response and which verb it was (for metrics). Grammar:
//
//	q <key>               lookup
//	a <key> <value>       insert
//	d <key>               remove
//	f <path>              run every line of path through Interpret
//
// An unknown leading byte, an empty line, or missing arguments all produce
// "ill-formed command". ctx is checked between lines of a batch file: a
// cancelled context aborts the batch without a response for the remaining
// lines.
func Interpret(ctx context.Context, line string, idx *kvindex.Index) (string, Op) {
	if len(line) <= 1 {
		return respIllFormed, OpIllFormed
	}

	args := strings.Fields(line[1:])

	switch line[0] {
	case 'q':
		if len(args) < 1 {
			return respIllFormed, OpIllFormed
		}
		value, found := idx.Lookup(args[0])
		if !found {
			return respNotFound, OpQuery
		}
		return value, OpQuery

	case 'a':
		if len(args) < 2 {
			return respIllFormed, OpIllFormed
		}
		switch err := idx.Insert(args[0], args[1]); {
		case err == nil:
			return respAdded, OpAdd
		case errors.Is(err, kvindex.ErrDuplicate):
			return respDuplicate, OpAdd
		default:
			return respIllFormed, OpIllFormed
		}

	case 'd':
		if len(args) < 1 {
			return respIllFormed, OpIllFormed
		}
		if err := idx.Remove(args[0]); err != nil {
			return respNotInDB, OpDelete
		}
		return respRemoved, OpDelete

	case 'f':
		if len(args) < 1 {
			return respIllFormed, OpIllFormed
		}
		return runBatch(ctx, args[0], idx), OpBatch

	default:
		return respIllFormed, OpIllFormed
	}
}

// runBatch opens path and replays each line through Interpret, discarding
// every per-line response; only the final file-level outcome is reported.
func runBatch(ctx context.Context, path string, idx *kvindex.Index) string {
	f, err := os.Open(path)
	if err != nil {
		return respBadFileName
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return respFileOK
		default:
		}
		Interpret(ctx, scanner.Text(), idx)
	}
	return respFileOK
}
