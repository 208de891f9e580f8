package ops

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/mapping"
	"github.com/Runemoro/knit/internal/store"
)

// CheckInput contains parameters for the Check operation.
type CheckInput struct {
	Dir string // optional, default: the mapping directory
}

// CheckIssue is a problem found in one mapping file. Line is 0 for
// problems that concern the whole file.
type CheckIssue struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// CheckOutput contains the result of the Check operation.
type CheckOutput struct {
	Dir    string       `json:"dir" yaml:"dir"`
	Files  int          `json:"files" yaml:"files"`
	Issues []CheckIssue `json:"issues" yaml:"issues"`
}

// OK reports whether no issues were found.
func (o *CheckOutput) OK() bool { return len(o.Issues) == 0 }

// Check parses every mapping file below a directory and reports files that
// are malformed or whose root class does not match their path.
func Check(ctx context.Context, env *Env, input CheckInput) (*CheckOutput, error) {
	dir := input.Dir
	if dir == "" {
		err := env.Store.Do(func(s *store.Store) error {
			dir = s.Dir()
			return nil
		})
		if err != nil {
			return nil, err
		}
		if dir == "" {
			return nil, errors.NewMappingsDisabled()
		}
	} else if err := ValidateDir(dir, PathCheckRead, env.Config, ""); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, convertError(err, dir)
	}

	loaded, malformed, err := mapping.ReadDir(dir)
	if err != nil {
		var ferr *mapping.FormatError
		switch {
		case os.IsNotExist(err):
			return nil, errors.NewFileNotFound(dir)
		case stderrors.As(err, &ferr):
			return nil, errors.NewInvalidRequest(ferr.Error())
		}
		return nil, errors.NewInternal(err)
	}

	out := &CheckOutput{Dir: dir, Files: len(loaded) + len(malformed), Issues: []CheckIssue{}}
	for _, ferr := range malformed {
		out.Issues = append(out.Issues, CheckIssue{File: ferr.File, Line: ferr.Line, Message: ferr.Message})
	}
	for _, l := range loaded {
		if l.Class.Name != l.Name {
			out.Issues = append(out.Issues, CheckIssue{
				File:    l.File,
				Line:    1,
				Message: "class " + l.Class.Name + " does not match file name " + l.Name,
			})
		}
	}
	return out, nil
}
