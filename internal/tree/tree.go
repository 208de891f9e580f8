// Package tree encodes labeled trees as plain text where nesting depth is
// expressed by leading tab characters: one node per line, children on the
// lines that follow at depth+1.
package tree

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Indent is the indentation marker. A label may not contain it.
const Indent = '\t'

// ParseError is returned by Read when the input is not a well-formed tree.
// Line is 1-based.
type ParseError struct {
	Line    int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (line %d)", e.Message, e.Line)
}

// Errorf creates a ParseError for the given line. Factories use it to report
// domain errors with the same line semantics as structural ones.
func Errorf(line int, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Message: fmt.Sprintf(format, args...)}
}

// Factory builds a node from its label, its already built children and the
// line the label was read from.
type Factory[N any] = func(label string, children []N, line int) (N, error)

// Write writes root and all of its descendants to w.
func Write[N any](w io.Writer, root N, children func(N) []N, label func(N) string) error {
	bw := bufio.NewWriter(w)
	if err := write(bw, root, children, label, 0); err != nil {
		return err
	}
	return bw.Flush()
}

func write[N any](w *bufio.Writer, node N, children func(N) []N, label func(N) string, depth int) error {
	l := label(node)
	if strings.ContainsRune(l, Indent) || strings.ContainsAny(l, "\r\n") {
		return fmt.Errorf("label %q contains an indentation or line break character", l)
	}

	for i := 0; i < depth; i++ {
		if err := w.WriteByte(Indent); err != nil {
			return err
		}
	}
	if _, err := w.WriteString(l); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}

	for _, child := range children(node) {
		if err := write(w, child, children, label, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// frame accumulates the children of a node whose line has been read but
// which has not been built yet.
type frame[N any] struct {
	label    string
	line     int
	children []N
}

// Read parses r into its top-level nodes. Nodes are built bottom-up through
// factory once all of their children are known. An empty input yields no
// nodes.
func Read[N any](r io.Reader, factory Factory[N]) ([]N, error) {
	// stack[0] collects top-level nodes; stack[d+1] is the open node at depth d.
	stack := []*frame[N]{{}}
	var pending *frame[N]
	lastIndent := 0

	// finish builds f and appends it to the innermost open frame.
	finish := func(f *frame[N]) error {
		node, err := factory(f.label, f.children, f.line)
		if err != nil {
			return err
		}
		top := stack[len(stack)-1]
		top.children = append(top.children, node)
		return nil
	}

	br := bufio.NewReader(r)
	for line := 1; ; line++ {
		text, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		eof := err == io.EOF
		if eof && text == "" {
			break
		}

		text = strings.TrimSuffix(text, "\n")
		text = strings.ReplaceAll(text, "\r", "")

		indent := 0
		for indent < len(text) && text[indent] == Indent {
			indent++
		}
		label := text[indent:]
		if label == "" {
			return nil, Errorf(line, "empty line")
		}
		if strings.ContainsRune(label, Indent) {
			return nil, Errorf(line, "found tab in value")
		}

		switch {
		case pending == nil:
			if indent != 0 {
				return nil, Errorf(line, "indented too much")
			}
		case indent == lastIndent+1:
			stack = append(stack, pending)
		case indent <= lastIndent:
			if err := finish(pending); err != nil {
				return nil, err
			}
			for len(stack) > indent+1 {
				closed := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if err := finish(closed); err != nil {
					return nil, err
				}
			}
		default:
			return nil, Errorf(line, "indented too much")
		}

		pending = &frame[N]{label: label, line: line}
		lastIndent = indent

		if eof {
			break
		}
	}

	if pending != nil {
		if err := finish(pending); err != nil {
			return nil, err
		}
	}
	for len(stack) > 1 {
		closed := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := finish(closed); err != nil {
			return nil, err
		}
	}

	return stack[0].children, nil
}
