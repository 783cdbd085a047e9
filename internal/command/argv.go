package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

var (
	errNotList         = errors.New("expected a bracketed list")
	errEmptyExecutable = errors.New("first element must name an executable")
)

// ParseArgv parses a flow-style list of command tokens such as
// `["/usr/bin/backup", "--all"]`. An empty list yields a nil argv.
// Unquoted scalars keep their literal text, so `[chmod, 0755, f]` passes
// "0755" through unchanged.
func ParseArgv(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, errNotList
	}

	f, err := parser.ParseBytes([]byte(s), 0)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s, err)
	}
	if len(f.Docs) != 1 {
		return nil, errNotList
	}
	seq, ok := f.Docs[0].Body.(*ast.SequenceNode)
	if !ok {
		return nil, errNotList
	}
	if len(seq.Values) == 0 {
		return nil, nil
	}

	argv := make([]string, 0, len(seq.Values))
	for i, v := range seq.Values {
		tok, err := token(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		argv = append(argv, tok)
	}
	if argv[0] == "" {
		return nil, errEmptyExecutable
	}
	return argv, nil
}

func token(n ast.Node) (string, error) {
	switch v := n.(type) {
	case *ast.StringNode:
		return v.Value, nil
	case *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode, *ast.InfinityNode, *ast.NanNode:
		return n.GetToken().Value, nil
	}
	return "", fmt.Errorf("%s is not a plain token", n.Type())
}

// FormatArgv renders argv in the form accepted by ParseArgv.
func FormatArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = strconv.Quote(a)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
