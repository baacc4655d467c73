package server

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/mailgun/raymond/v2"

	playground "github.com/invakid404/cel-playground"
)

//go:embed templates/index.hbs
var indexTemplate string

type page struct {
	tpl *raymond.Template
}

func newPage() (*page, error) {
	tpl, err := raymond.Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	// Embeds a value as JSON in a script block. encoding/json escapes <, >
	// and & so the output cannot close the block.
	tpl.RegisterHelper("json", func(v interface{}) raymond.SafeString {
		out, err := json.Marshal(v)
		if err != nil {
			return raymond.SafeString("null")
		}
		return raymond.SafeString(out)
	})
	return &page{tpl: tpl}, nil
}

func (p *page) render(view playground.View, version string) (string, error) {
	modeOptions := make([]map[string]interface{}, 0, len(view.Modes))
	for _, m := range view.Modes {
		modeOptions = append(modeOptions, map[string]interface{}{
			"id":       m.ID,
			"name":     m.Name,
			"selected": m.ID == view.Mode.ID,
		})
	}

	tabs := make([]map[string]interface{}, 0, len(view.Mode.Tabs))
	for i, slot := range view.Mode.Tabs {
		tabs = append(tabs, map[string]interface{}{
			"id":         slot.ID,
			"name":       slot.Name,
			"editorMode": slot.EditorMode,
			"value":      view.State.Inputs[slot.ID],
			"active":     i == 0,
		})
	}

	groups := make([]map[string]interface{}, 0, len(view.Groups))
	for _, g := range view.Groups {
		options := make([]map[string]interface{}, 0, len(g.Options))
		for _, o := range g.Options {
			options = append(options, map[string]interface{}{"value": o.Value, "label": o.Label})
		}
		groups = append(groups, map[string]interface{}{
			"category": g.Category,
			"options":  options,
		})
	}

	return p.tpl.Exec(map[string]interface{}{
		"version":     version,
		"theme":       string(view.Theme),
		"editorTheme": view.EditorTheme,
		"mode": map[string]interface{}{
			"id":         view.Mode.ID,
			"name":       view.Mode.Name,
			"editorMode": view.Mode.EditorMode,
		},
		"modes":       modeOptions,
		"tabs":        tabs,
		"groups":      groups,
		"expression":  view.State.Expression,
		"inputTitle":  view.InputTitle,
		"costLabel":   view.CostLabel,
		"shared":      view.Shared,
		"decodeError": view.DecodeError,
		"state":       view.State,
	})
}
