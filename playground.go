// Package playground wires the mode registry, the example catalog, the
// preferences, the share link codec and an evaluation engine into the
// operations behind the playground page.
package playground

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/invakid404/cel-playground/internal/catalog"
	"github.com/invakid404/cel-playground/internal/common"
	"github.com/invakid404/cel-playground/internal/metrics"
	"github.com/invakid404/cel-playground/internal/modes"
	"github.com/invakid404/cel-playground/internal/prefs"
	"github.com/invakid404/cel-playground/internal/share"
)

// DefaultLinkCacheSize is the number of decoded share links kept in memory.
const DefaultLinkCacheSize = 256

// Options holds the collaborators of a Playground. Registry and Engine are
// required; the others get in-memory or bundled defaults.
type Options struct {
	Registry      *modes.Registry
	Engine        common.Engine
	Catalog       *catalog.Catalog
	Prefs         *prefs.Preferences
	Codec         *share.Codec
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	LinkCacheSize int
}

// Playground is constructed once and shared by every request.
type Playground struct {
	registry *modes.Registry
	engine   common.Engine
	catalog  *catalog.Catalog
	prefs    *prefs.Preferences
	codec    *share.Codec
	metrics  *metrics.Metrics
	logger   *zap.Logger
	links    *lru.Cache[string, share.State]
}

// View is everything the page needs to render the editors of one mode.
type View struct {
	Mode        modes.Mode      `json:"mode"`
	Modes       []modes.Mode    `json:"modes"`
	State       share.State     `json:"state"`
	Theme       prefs.Theme     `json:"theme"`
	EditorTheme string          `json:"editorTheme"`
	InputTitle  string          `json:"inputTitle"`
	CostLabel   string          `json:"costLabel"`
	Groups      []catalog.Group `json:"groups"`
	// Shared is set when the state came from a share link.
	Shared bool `json:"shared"`
	// DecodeError describes why a share link was discarded.
	DecodeError string `json:"decodeError,omitempty"`
}

// New creates a playground from opts.
func New(opts Options) (*Playground, error) {
	if opts.Registry == nil {
		return nil, errors.New("playground: a mode registry is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("playground: an engine is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Embedded(opts.Registry, opts.Logger)
	}
	if opts.Prefs == nil {
		opts.Prefs = prefs.New(prefs.NewMemoryStore(), opts.Registry, opts.Registry.Default().ID, opts.Logger)
	}
	if opts.Codec == nil {
		opts.Codec = share.NewCodec(opts.Registry)
	}
	if opts.LinkCacheSize <= 0 {
		opts.LinkCacheSize = DefaultLinkCacheSize
	}

	links, err := lru.New[string, share.State](opts.LinkCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create link cache: %w", err)
	}

	return &Playground{
		registry: opts.Registry,
		engine:   opts.Engine,
		catalog:  opts.Catalog,
		prefs:    opts.Prefs,
		codec:    opts.Codec,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		links:    links,
	}, nil
}

// Registry returns the mode registry.
func (p *Playground) Registry() *modes.Registry {
	return p.registry
}

// Catalog returns the example catalog.
func (p *Playground) Catalog() *catalog.Catalog {
	return p.catalog
}

// LoadState builds the view of a page load. A decodable share link in content
// wins and its mode becomes the client's mode. Otherwise, or when the link is
// broken, the client's saved mode is shown with its default example.
func (p *Playground) LoadState(ctx context.Context, client, content string) (View, error) {
	theme := p.prefs.Theme(ctx, client)

	if content != "" {
		state, err := p.Decode(content)
		if err == nil {
			if err := p.prefs.SetMode(ctx, client, state.Mode); err != nil {
				p.logger.Warn("failed to save mode of shared link", zap.String("mode", state.Mode), zap.Error(err))
			}
			view, err := p.view(state, theme)
			view.Shared = true
			return view, err
		}

		fields := []zap.Field{zap.Error(err)}
		var decodeErr *share.DecodeError
		if errors.As(err, &decodeErr) {
			fields = append(fields, zap.String("stage", string(decodeErr.Stage)))
		}
		p.logger.Warn("discarding share link", fields...)

		view, verr := p.defaultView(ctx, client, theme)
		view.DecodeError = err.Error()
		return view, verr
	}

	return p.defaultView(ctx, client, theme)
}

func (p *Playground) defaultView(ctx context.Context, client string, theme prefs.Theme) (View, error) {
	state, err := p.DefaultState(p.prefs.Mode(ctx, client))
	if err != nil {
		return View{}, err
	}
	return p.view(state, theme)
}

// DefaultState is the content of a fresh editor for the mode: its default
// example.
func (p *Playground) DefaultState(modeID string) (share.State, error) {
	example, err := p.catalog.Default(modeID)
	if err != nil {
		return share.State{}, err
	}
	return share.State{Mode: modeID, Expression: example.Expression, Inputs: example.Inputs}, nil
}

func (p *Playground) view(state share.State, theme prefs.Theme) (View, error) {
	mode, err := p.registry.Lookup(state.Mode)
	if err != nil {
		return View{}, err
	}
	groups, err := p.catalog.Groups(mode.ID)
	if err != nil {
		return View{}, err
	}
	return View{
		Mode:        mode,
		Modes:       p.registry.List(),
		State:       state,
		Theme:       theme,
		EditorTheme: theme.EditorTheme(),
		InputTitle:  mode.InputTitle(),
		CostLabel:   mode.CostLabel(),
		Groups:      groups,
	}, nil
}

// Decode decodes the content parameter of a share link. Decoded links are
// cached, so reloading a shared page does not decode it again.
func (p *Playground) Decode(content string) (share.State, error) {
	if state, ok := p.links.Get(content); ok {
		return state.Clone(), nil
	}

	state, err := p.codec.Decode(content)
	if err != nil {
		p.metrics.ObserveShare(metrics.ShareDecode, metrics.OutcomeInvalid)
		return share.State{}, err
	}
	p.metrics.ObserveShare(metrics.ShareDecode, metrics.OutcomeOK)
	p.links.Add(content, state.Clone())
	return state, nil
}

// Encode returns the content parameter for state.
func (p *Playground) Encode(state share.State) (string, error) {
	content, err := p.codec.Encode(state)
	if err != nil {
		p.metrics.ObserveShare(metrics.ShareEncode, metrics.OutcomeError)
		return "", err
	}
	p.metrics.ObserveShare(metrics.ShareEncode, metrics.OutcomeOK)
	return content, nil
}

// Share returns baseURL with the content parameter set to the encoded state.
func (p *Playground) Share(state share.State, baseURL string) (string, error) {
	content, err := p.Encode(state)
	if err != nil {
		return "", err
	}
	return share.WithContent(baseURL, content)
}

// Args builds the engine arguments of state: the expression under the mode id
// and every declared slot under its id.
func (p *Playground) Args(state share.State) (map[string]string, error) {
	mode, err := p.registry.Lookup(state.Mode)
	if err != nil {
		return nil, err
	}
	args := make(map[string]string, len(mode.Tabs)+1)
	args[mode.ID] = state.Expression
	for _, slot := range mode.Tabs {
		args[slot.ID], _ = slot.Lookup(state.Inputs)
	}
	return args, nil
}

// Run evaluates state with the engine. Every failure, including an unknown
// mode, is reported in the response.
func (p *Playground) Run(ctx context.Context, state share.State) common.Response {
	args, err := p.Args(state)
	if err != nil {
		return common.NewResponse("", err)
	}

	start := time.Now()
	resp := p.engine.Evaluate(ctx, state.Mode, args)
	p.metrics.ObserveEvaluation(state.Mode, resp.IsError, time.Since(start))

	p.logger.Debug("evaluated expression",
		zap.String("mode", state.Mode),
		zap.Bool("isError", resp.IsError),
		zap.Duration("took", time.Since(start)),
	)
	return resp
}

// ErrCheckUnsupported is returned by Check when the engine cannot check
// expressions without evaluating them.
var ErrCheckUnsupported = errors.New("engine does not support checking")

// Check reports compile issues of the expression in state.
func (p *Playground) Check(state share.State) ([]common.Issue, error) {
	checker, ok := p.engine.(common.Checker)
	if !ok {
		return nil, ErrCheckUnsupported
	}
	args, err := p.Args(state)
	if err != nil {
		return nil, err
	}
	return checker.Check(state.Mode, args)
}

// SelectMode switches the client to the mode and returns its default view.
func (p *Playground) SelectMode(ctx context.Context, client, modeID string) (View, error) {
	if !p.registry.Has(modeID) {
		return View{}, fmt.Errorf("%w: %q", modes.ErrUnknownMode, modeID)
	}
	if err := p.prefs.SetMode(ctx, client, modeID); err != nil {
		return View{}, fmt.Errorf("failed to save mode: %w", err)
	}
	state, err := p.DefaultState(modeID)
	if err != nil {
		return View{}, err
	}
	return p.view(state, p.prefs.Theme(ctx, client))
}

// ApplyExample returns the editor contents of the named example.
func (p *Playground) ApplyExample(modeID, name string) (share.State, error) {
	example, err := p.catalog.Find(modeID, name)
	if err != nil {
		return share.State{}, err
	}
	return share.State{Mode: modeID, Expression: example.Expression, Inputs: example.Inputs}, nil
}

// Theme returns the theme of the client.
func (p *Playground) Theme(ctx context.Context, client string) prefs.Theme {
	return p.prefs.Theme(ctx, client)
}

// SetTheme saves the theme of the client.
func (p *Playground) SetTheme(ctx context.Context, client string, theme prefs.Theme) error {
	return p.prefs.SetTheme(ctx, client, theme)
}

// ToggleTheme switches the client between the light and dark theme.
func (p *Playground) ToggleTheme(ctx context.Context, client string) (prefs.Theme, error) {
	return p.prefs.ToggleTheme(ctx, client)
}

// Mode returns the mode saved for the client.
func (p *Playground) Mode(ctx context.Context, client string) string {
	return p.prefs.Mode(ctx, client)
}
