package ops

import (
	"strings"

	"github.com/Runemoro/knit/internal/store"
)

// CommentInput contains parameters for the Comment operation.
type CommentInput struct {
	Ref   RefInput
	Lines []string // replaces the existing lines, empty clears them
}

// CommentOutput contains the result of the Comment operation.
type CommentOutput struct {
	Target   string   `json:"target"`
	Previous []string `json:"previous"`
	Lines    []string `json:"lines"`
}

// SplitComment splits free text into comment lines.
func SplitComment(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", "    ")
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Comment replaces the documentation of an entity and persists it.
func Comment(env *Env, input CommentInput) (*CommentOutput, error) {
	var out *CommentOutput
	var identifier string
	err := env.Store.Do(func(s *store.Store) error {
		ref, err := input.Ref.resolve(s)
		if err != nil {
			return err
		}
		identifier = ref.String()
		previous, err := s.SetComments(ref, input.Lines)
		if err != nil {
			return err
		}
		out = &CommentOutput{Target: identifier, Previous: previous, Lines: input.Lines}
		if out.Previous == nil {
			out.Previous = []string{}
		}
		if out.Lines == nil {
			out.Lines = []string{}
		}
		return nil
	})
	if err != nil {
		return nil, convertError(err, identifier)
	}
	return out, nil
}
