package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/Runemoro/knit/internal/config"
	"github.com/Runemoro/knit/internal/descriptor"
	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/mapping"
	"github.com/Runemoro/knit/internal/store"
)

// Pagination limits
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
	MaxHistoryLimit  = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit" yaml:"limit"`
	Offset  int  `json:"offset" yaml:"offset"`
	HasMore bool `json:"has_more" yaml:"has_more"`
	Total   int  `json:"total" yaml:"total"`
}

// Env is what every operation runs against. DB may be nil, in which case
// renames are not journaled and undo/history are unavailable.
type Env struct {
	Store  *store.Locked
	DB     *sql.DB
	Config *config.Config
}

// NewEnv opens the store at cfg.MappingsDir. An empty MappingsDir leaves
// mappings disabled.
func NewEnv(cfg *config.Config, database *sql.DB, opts ...store.Option) *Env {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Env{
		Store:  store.NewLocked(store.Open(cfg.MappingsDir, opts...)),
		DB:     database,
		Config: cfg,
	}
}

func (env *Env) classifier() config.Classifier {
	if env.Config == nil {
		return config.DefaultConfig().Classifier()
	}
	return env.Config.Classifier()
}

// RefInput addresses an entity the way callers type it. The descriptor of a
// field or method may be given directly in obfuscated form, or as type
// expressions in current names which are resolved against the mappings.
// Local variables are addressed by slot Index, or by parameter position
// when Param is set.
type RefInput struct {
	Kind       string   `json:"kind"`
	Class      string   `json:"class"`
	Nested     []string `json:"nested,omitempty"`
	Member     string   `json:"member,omitempty"`
	Descriptor string   `json:"descriptor,omitempty"`
	Type       string   `json:"type,omitempty"`   // field type
	Params     []string `json:"params,omitempty"` // method parameter types
	Return     string   `json:"return,omitempty"` // method return type, default void
	Index      int      `json:"index,omitempty"`
	Param      *int     `json:"param,omitempty"`
	Static     bool     `json:"static,omitempty"`
}

// resolve turns in into a store ref. It must run under the store lock.
func (in RefInput) resolve(s *store.Store) (store.Ref, error) {
	kind := store.KindClass
	if strings.TrimSpace(in.Kind) != "" {
		k, err := store.ParseKind(in.Kind)
		if err != nil {
			return store.Ref{}, err
		}
		kind = k
	}

	class, nested := splitNested(in.Class)
	r := store.Ref{
		Kind:   kind,
		Class:  mapping.NormalizeName(class),
		Nested: append(nested, in.Nested...),
		Member: strings.TrimSpace(in.Member),
		Index:  in.Index,
	}
	if kind == store.KindClass {
		return r, r.Validate()
	}

	desc := strings.TrimSpace(in.Descriptor)
	switch {
	case desc != "":
	case kind == store.KindField && in.Type != "":
		t, err := descriptor.Parse(in.Type)
		if err != nil {
			return store.Ref{}, err
		}
		desc = s.Resolve(t)
	case kind != store.KindField:
		params, ret, err := parseSignature(in.Params, in.Return)
		if err != nil {
			return store.Ref{}, err
		}
		desc = s.MethodDescriptor(params, ret)
		if kind == store.KindLocal && in.Param != nil {
			slots := descriptor.ParameterSlots(in.Static, params)
			if *in.Param < 0 || *in.Param >= len(slots) {
				return store.Ref{}, errors.NewInvalidRequest("param is out of range")
			}
			r.Index = slots[*in.Param]
		}
	}
	r.Descriptor = desc
	return r, r.Validate()
}

// splitNested splits a binary name like a/Outer$Inner into the root and its
// nested class chain.
func splitNested(name string) (string, []string) {
	name = strings.TrimSpace(name)
	pkg := ""
	if i := strings.LastIndexAny(name, "/."); i >= 0 {
		pkg, name = name[:i+1], name[i+1:]
	}
	parts := strings.Split(name, "$")
	if len(parts) == 1 || parts[0] == "" {
		return pkg + name, nil
	}
	var nested []string
	for _, p := range parts[1:] {
		if p != "" {
			nested = append(nested, p)
		}
	}
	return pkg + parts[0], nested
}

func parseSignature(params []string, ret string) ([]descriptor.Type, descriptor.Type, error) {
	types, err := descriptor.ParseList(params)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(ret) == "" {
		return types, nil, nil
	}
	t, err := descriptor.Parse(ret)
	if err != nil {
		return nil, nil, err
	}
	return types, t, nil
}

// convertError maps store, codec and context errors to knit errors.
// identifier names the entity in NOT_FOUND errors.
func convertError(err error, identifier string) error {
	if err == nil {
		return nil
	}
	var kErr *errors.KnitError
	if stderrors.As(err, &kErr) {
		return kErr
	}
	var ferr *mapping.FormatError
	switch {
	case stderrors.As(err, &ferr):
		return errors.FromFormat(ferr)
	case stderrors.Is(err, store.ErrDisabled):
		return errors.NewMappingsDisabled()
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NewNotFound(identifier)
	case stderrors.Is(err, store.ErrConflict):
		return errors.NewConflict(err.Error())
	case stderrors.Is(err, store.ErrInvalidRef),
		stderrors.Is(err, store.ErrInvalidName),
		stderrors.Is(err, descriptor.ErrSyntax):
		return errors.NewInvalidRequest(err.Error())
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewCancelled()
	default:
		return errors.NewInternal(err)
	}
}
