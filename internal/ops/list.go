package ops

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/store"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Pattern      string // doublestar glob over slash-separated names, e.g. net/**/class_*
	UnmappedOnly bool   // only classes whose current name still looks obfuscated
	Limit        int    // default: 100, max: 500
	Offset       int    // default: 0
}

// ClassSummary is one persisted root class.
type ClassSummary struct {
	Name       string `json:"name" yaml:"name"`
	Obfuscated string `json:"obfuscated" yaml:"obfuscated"`
	Unmapped   bool   `json:"unmapped" yaml:"unmapped"`
	File       string `json:"file" yaml:"file"`
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []ClassSummary `json:"items" yaml:"items"`
	Pagination Pagination     `json:"pagination" yaml:"pagination"`
	Sort       string         `json:"sort" yaml:"sort"`
}

// List retrieves the persisted root classes whose current or obfuscated
// name matches the pattern.
func List(env *Env, input ListInput) (*ListOutput, error) {
	if input.Pattern != "" && !doublestar.ValidatePattern(input.Pattern) {
		return nil, errors.NewInvalidRequest("invalid pattern: " + input.Pattern)
	}

	// Apply limit defaults and bounds
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	// Ensure offset is non-negative
	offset := max(input.Offset, 0)

	cls := env.classifier()
	var matched []ClassSummary
	err := env.Store.Do(func(s *store.Store) error {
		names, err := s.Roots()
		if err != nil {
			return err
		}
		for _, name := range names {
			root, err := s.GetOrCreate(name)
			if err != nil {
				return err
			}
			if !matches(input.Pattern, root.Name, root.ObfuscatedName) {
				continue
			}
			unmapped := cls.IsClassObfuscated(root.Name)
			if input.UnmappedOnly && !unmapped {
				continue
			}
			file, _ := s.File(name)
			matched = append(matched, ClassSummary{
				Name:       root.Name,
				Obfuscated: root.ObfuscatedName,
				Unmapped:   unmapped,
				File:       file,
			})
		}
		return nil
	})
	if err != nil {
		return nil, convertError(err, input.Pattern)
	}

	total := len(matched)
	items := []ClassSummary{}
	if offset < total {
		items = matched[offset:min(offset+limit, total)]
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "name_asc",
	}, nil
}

func matches(pattern string, names ...string) bool {
	if pattern == "" {
		return true
	}
	for _, n := range names {
		if ok, _ := doublestar.Match(pattern, n); ok {
			return true
		}
	}
	return false
}
