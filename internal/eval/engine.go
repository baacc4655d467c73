// Package eval is the in-process evaluation engine. It understands every
// built-in mode: plain CEL expressions against a data document, validating
// admission policies and webhook match conditions.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
	"go.uber.org/zap"
	k8slib "k8s.io/apiserver/pkg/cel/library"

	"github.com/invakid404/cel-playground/internal/common"
	"github.com/invakid404/cel-playground/internal/modes"
)

// execFn evaluates the arguments of one mode and returns the output document
type execFn func(ctx context.Context, b *Builtin, args map[string]string) (string, error)

var execFns = map[string]execFn{
	"cel":      execCEL,
	"vap":      execValidatingAdmissionPolicy,
	"webhooks": execWebhooks,
}

// Builtin evaluates expressions with cel-go inside the current process
type Builtin struct {
	logger    *zap.Logger
	libraries []string
	options   []EnvOptionConfig
	envOpts   []cel.EnvOption
	prgOpts   []cel.ProgramOption
	costLimit uint64
}

// Option configures a Builtin engine
type Option func(*Builtin)

// WithLogger sets the logger used for evaluation diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builtin) {
		b.logger = logger
	}
}

// WithLibraries enables cel-go extension libraries by name
func WithLibraries(names ...string) Option {
	return func(b *Builtin) {
		b.libraries = names
	}
}

// WithEnvOptions replaces the default environment options
func WithEnvOptions(configs ...EnvOptionConfig) Option {
	return func(b *Builtin) {
		b.options = configs
	}
}

// WithCostLimit aborts evaluations whose runtime cost exceeds limit. Zero means
// no limit.
func WithCostLimit(limit uint64) Option {
	return func(b *Builtin) {
		b.costLimit = limit
	}
}

// NewBuiltin creates the in-process engine
func NewBuiltin(opts ...Option) (*Builtin, error) {
	b := &Builtin{
		logger:    zap.NewNop(),
		libraries: DefaultLibraries,
		options:   DefaultEnvOptions,
	}
	for _, opt := range opts {
		opt(b)
	}

	libs, err := Libraries(b.libraries...)
	if err != nil {
		return nil, err
	}

	envOpts, err := EnvOptions(b.options)
	if err != nil {
		return nil, err
	}

	b.envOpts = []cel.EnvOption{
		cel.EagerlyValidateDeclarations(true),
		cel.DefaultUTCTimeZone(true),
		ext.Strings(ext.StringsVersion(2)),
		k8slib.URLs(),
		k8slib.Regex(),
		k8slib.Lists(),
		k8slib.Quantity(),
	}
	b.envOpts = append(b.envOpts, envOpts...)
	b.envOpts = append(b.envOpts, libs...)

	b.prgOpts = []cel.ProgramOption{
		cel.EvalOptions(cel.OptOptimize, cel.OptTrackCost),
		cel.InterruptCheckFrequency(100),
	}
	if b.costLimit > 0 {
		b.prgOpts = append(b.prgOpts, cel.CostLimit(b.costLimit))
	}

	return b, nil
}

// Modes returns the ids of the modes this engine can evaluate
func (b *Builtin) Modes() []string {
	return []string{"cel", "vap", "webhooks"}
}

// Evaluate runs the expression stored under the mode id in args. Failures of
// any kind are reported through the response, never as a Go error.
func (b *Builtin) Evaluate(ctx context.Context, mode string, args map[string]string) common.Response {
	fn, ok := execFns[mode]
	if !ok {
		return common.NewResponse("", fmt.Errorf("%w: %q", modes.ErrUnknownMode, mode))
	}

	start := time.Now()
	out, err := fn(ctx, b, args)
	b.logger.Debug("evaluated expression",
		zap.String("mode", mode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("error", err != nil),
	)
	return common.NewResponse(out, err)
}

func (b *Builtin) newEnv(extra ...cel.EnvOption) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(b.envOpts)+len(extra))
	opts = append(opts, b.envOpts...)
	opts = append(opts, extra...)

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return env, nil
}

func marshalOutput(v interface{}) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal the output: %w", err)
	}
	return string(out), nil
}
