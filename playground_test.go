package playground

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invakid404/cel-playground/internal/catalog"
	"github.com/invakid404/cel-playground/internal/common"
	"github.com/invakid404/cel-playground/internal/eval"
	"github.com/invakid404/cel-playground/internal/metrics"
	"github.com/invakid404/cel-playground/internal/modes"
	"github.com/invakid404/cel-playground/internal/prefs"
	"github.com/invakid404/cel-playground/internal/share"
)

func newPlayground(t *testing.T) *Playground {
	t.Helper()
	engine, err := eval.NewBuiltin()
	require.NoError(t, err)

	p, err := New(Options{
		Registry: modes.Builtin(),
		Engine:   engine,
		Metrics:  metrics.New(),
	})
	require.NoError(t, err)
	return p
}

func TestNew_Required(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Registry: modes.Builtin()})
	assert.Error(t, err)
}

func TestLoadState_Fresh(t *testing.T) {
	p := newPlayground(t)

	view, err := p.LoadState(context.Background(), "client", "")
	require.NoError(t, err)

	assert.Equal(t, "cel", view.Mode.ID)
	assert.False(t, view.Shared)
	assert.Empty(t, view.DecodeError)
	assert.Equal(t, prefs.ThemeLight, view.Theme)
	assert.Equal(t, "ace/theme/clouds", view.EditorTheme)
	assert.Equal(t, "Input", view.InputTitle)
	assert.Equal(t, "Cost: ", view.CostLabel)
	assert.Len(t, view.Modes, 3)
	assert.Contains(t, view.State.Expression, "account.balance")

	last := view.Groups[len(view.Groups)-1]
	assert.Equal(t, catalog.BlankOption, last.Options[0].Label)
}

func TestLoadState_Shared(t *testing.T) {
	p := newPlayground(t)
	ctx := context.Background()

	state := share.State{
		Mode:       "vap",
		Expression: "kind: ValidatingAdmissionPolicy",
		Inputs:     map[string]string{"dataUpdated": "kind: Pod"},
	}
	content, err := p.Encode(state)
	require.NoError(t, err)

	view, err := p.LoadState(ctx, "client", content)
	require.NoError(t, err)
	assert.True(t, view.Shared)
	assert.Equal(t, "vap", view.Mode.ID)
	assert.True(t, state.Equal(view.State))
	assert.Equal(t, "Inputs: ", view.InputTitle)
	assert.Equal(t, "Total cost: ", view.CostLabel)

	// The mode of the link sticks
	assert.Equal(t, "vap", p.Mode(ctx, "client"))
	view, err = p.LoadState(ctx, "client", "")
	require.NoError(t, err)
	assert.Equal(t, "vap", view.Mode.ID)
	assert.False(t, view.Shared)

	// Served from the cache the second time
	again, err := p.Decode(content)
	require.NoError(t, err)
	assert.True(t, state.Equal(again))
	assert.Equal(t, 1, p.links.Len())
}

func TestLoadState_BrokenLinkFallsBack(t *testing.T) {
	p := newPlayground(t)
	ctx := context.Background()

	_, err := p.SelectMode(ctx, "client", "webhooks")
	require.NoError(t, err)

	view, err := p.LoadState(ctx, "client", "not-valid-base64!!")
	require.NoError(t, err)
	assert.False(t, view.Shared)
	assert.NotEmpty(t, view.DecodeError)
	assert.Equal(t, "webhooks", view.Mode.ID)
	assert.Contains(t, view.State.Expression, "ValidatingWebhookConfiguration")
	assert.Equal(t, 0, p.links.Len())
}

func TestLoadState_UnknownModeFallsBack(t *testing.T) {
	p := newPlayground(t)
	ctx := context.Background()

	_, err := p.SelectMode(ctx, "client", "vap")
	require.NoError(t, err)

	compressed, err := share.Compress(`{"mode":"rego","rego":"allow = true"}`)
	require.NoError(t, err)

	view, err := p.LoadState(ctx, "client", share.EncodeText(compressed))
	require.NoError(t, err)
	assert.False(t, view.Shared)
	assert.NotEmpty(t, view.DecodeError)
	assert.Equal(t, "vap", view.Mode.ID)
	assert.Contains(t, view.State.Expression, "ValidatingAdmissionPolicy")
	assert.Equal(t, "vap", p.Mode(ctx, "client"))
}

func TestLoadState_LegacyLink(t *testing.T) {
	p := newPlayground(t)

	compressed, err := share.Compress(`{"expression":"1+1","data":"{}"}`)
	require.NoError(t, err)

	view, err := p.LoadState(context.Background(), "client", share.EncodeText(compressed))
	require.NoError(t, err)
	assert.True(t, view.Shared)
	assert.Equal(t, "cel", view.State.Mode)
	assert.Equal(t, "1+1", view.State.Expression)
	assert.Equal(t, "{}", view.State.Inputs["data"])
}

func TestShare(t *testing.T) {
	p := newPlayground(t)

	state := share.State{Mode: "cel", Expression: "1 + 1", Inputs: map[string]string{"data": "{}"}}
	link, err := p.Share(state, "https://playcel.example.com/?theme=dark")
	require.NoError(t, err)

	content, ok := share.ContentFromURL(link)
	require.True(t, ok)
	assert.Contains(t, link, "theme=dark")

	decoded, err := p.Decode(content)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)

	_, err = p.Share(share.State{Mode: "nope"}, "https://playcel.example.com/")
	assert.ErrorIs(t, err, modes.ErrUnknownMode)
}

func TestRun(t *testing.T) {
	p := newPlayground(t)
	ctx := context.Background()

	resp := p.Run(ctx, share.State{
		Mode:       "cel",
		Expression: "x * 2",
		Inputs:     map[string]string{"dataInput": "x: 21"},
	})
	require.False(t, resp.IsError, resp.Output)

	var out eval.CELResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Output), &out))
	assert.Equal(t, float64(42), out.Result)

	resp = p.Run(ctx, share.State{Mode: "nope"})
	assert.True(t, resp.IsError)

	resp = p.Run(ctx, share.State{Mode: "cel", Expression: "1 +"})
	assert.True(t, resp.IsError)
}

func TestRun_DefaultExamples(t *testing.T) {
	p := newPlayground(t)

	for _, mode := range p.Registry().List() {
		t.Run(mode.ID, func(t *testing.T) {
			examples, err := p.Catalog().Examples(mode.ID)
			require.NoError(t, err)
			for _, example := range examples {
				state, err := p.ApplyExample(mode.ID, example.Name)
				require.NoError(t, err)
				resp := p.Run(context.Background(), state)
				assert.False(t, resp.IsError, "%s: %s", example.Name, resp.Output)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	p := newPlayground(t)

	issues, err := p.Check(share.State{Mode: "cel", Expression: "x +", Inputs: map[string]string{"data": "x: 1"}})
	require.NoError(t, err)
	assert.NotEmpty(t, issues)

	issues, err = p.Check(share.State{Mode: "cel", Expression: "x + 1", Inputs: map[string]string{"data": "x: 1"}})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

type echoEngine struct{}

func (echoEngine) Evaluate(_ context.Context, mode string, args map[string]string) common.Response {
	return common.Response{Output: args[mode]}
}

func TestCheck_Unsupported(t *testing.T) {
	p, err := New(Options{Registry: modes.Builtin(), Engine: echoEngine{}})
	require.NoError(t, err)

	_, err = p.Check(share.State{Mode: "cel"})
	assert.ErrorIs(t, err, ErrCheckUnsupported)

	resp := p.Run(context.Background(), share.State{Mode: "cel", Expression: "echo"})
	assert.Equal(t, "echo", resp.Output)
}

func TestArgs(t *testing.T) {
	p := newPlayground(t)

	args, err := p.Args(share.State{
		Mode:       "vap",
		Expression: "policy",
		Inputs:     map[string]string{"dataUpdated": "obj", "bogus": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"vap":            "policy",
		"dataOriginal":   "",
		"dataUpdated":    "obj",
		"dataNamespace":  "",
		"dataRequest":    "",
		"dataAuthorizer": "",
	}, args)
}

func TestArgs_PrefersSlotID(t *testing.T) {
	p := newPlayground(t)

	for i := 0; i < 20; i++ {
		args, err := p.Args(share.State{
			Mode:       "cel",
			Expression: "x",
			Inputs:     map[string]string{"data": "x: 1", "dataInput": "x: 2"},
		})
		require.NoError(t, err)
		assert.Equal(t, "x: 1", args["data"])
	}
}

func TestSelectModeAndExamples(t *testing.T) {
	p := newPlayground(t)
	ctx := context.Background()

	view, err := p.SelectMode(ctx, "client", "vap")
	require.NoError(t, err)
	assert.Equal(t, "vap", view.Mode.ID)
	assert.Equal(t, "vap", p.Mode(ctx, "client"))

	_, err = p.SelectMode(ctx, "client", "nope")
	assert.ErrorIs(t, err, modes.ErrUnknownMode)

	state, err := p.ApplyExample("cel", "Strings:Formatting")
	require.NoError(t, err)
	assert.Contains(t, state.Expression, "format")

	blank, err := p.ApplyExample("cel", catalog.DefaultCategory)
	require.NoError(t, err)
	assert.Empty(t, blank.Expression)

	_, err = p.ApplyExample("cel", "missing")
	assert.ErrorIs(t, err, catalog.ErrExampleNotFound)
}

func TestToggleTheme(t *testing.T) {
	p := newPlayground(t)
	ctx := context.Background()

	theme, err := p.ToggleTheme(ctx, "client")
	require.NoError(t, err)
	assert.Equal(t, prefs.ThemeDark, theme)

	view, err := p.LoadState(ctx, "client", "")
	require.NoError(t, err)
	assert.Equal(t, "ace/theme/tomorrow_night", view.EditorTheme)

	require.NoError(t, p.SetTheme(ctx, "client", prefs.ThemeLight))
	assert.Equal(t, prefs.ThemeLight, p.Theme(ctx, "client"))
}
