//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"

	playground "github.com/invakid404/cel-playground"
	"github.com/invakid404/cel-playground/internal/eval"
	"github.com/invakid404/cel-playground/internal/modes"
	"github.com/invakid404/cel-playground/internal/share"
)

var play *playground.Playground

// toJS hands v to JavaScript as a plain object
func toJS(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return js.Global().Get("JSON").Call("parse", string(data))
}

func errorResult(err error) interface{} {
	return map[string]interface{}{
		"error": err.Error(),
	}
}

// fromJS decodes a JavaScript object into dst
func fromJS(value js.Value, dst interface{}) error {
	text := js.Global().Get("JSON").Call("stringify", value).String()
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return fmt.Errorf("failed to parse argument: %v", err)
	}
	return nil
}

// evalExpr evaluates a state object {mode, expression, inputs}
func evalExpr(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult(fmt.Errorf("expected 1 argument: state object"))
	}

	var state share.State
	if err := fromJS(args[0], &state); err != nil {
		return errorResult(err)
	}
	return toJS(play.Run(context.Background(), state))
}

// checkExpr reports the compile issues of a state object
func checkExpr(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult(fmt.Errorf("expected 1 argument: state object"))
	}

	var state share.State
	if err := fromJS(args[0], &state); err != nil {
		return errorResult(err)
	}
	issues, err := play.Check(state)
	if err != nil {
		return errorResult(err)
	}
	return toJS(map[string]interface{}{"issues": issues})
}

// encodeShare returns the content parameter of a state object
func encodeShare(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult(fmt.Errorf("expected 1 argument: state object"))
	}

	var state share.State
	if err := fromJS(args[0], &state); err != nil {
		return errorResult(err)
	}
	content, err := play.Encode(state)
	if err != nil {
		return errorResult(err)
	}
	return map[string]interface{}{"content": content}
}

// decodeShare accepts a content parameter or a whole share link
func decodeShare(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult(fmt.Errorf("expected 1 argument: content string"))
	}

	content := args[0].String()
	if c, ok := share.ContentFromURL(content); ok {
		content = c
	}
	state, err := play.Decode(content)
	if err != nil {
		return errorResult(err)
	}
	return toJS(state)
}

func listModes(this js.Value, args []js.Value) interface{} {
	return toJS(play.Registry().List())
}

// listExamples returns the example groups of a mode for the example select
func listExamples(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult(fmt.Errorf("expected 1 argument: mode string"))
	}

	groups, err := play.Catalog().Groups(args[0].String())
	if err != nil {
		return errorResult(err)
	}
	return toJS(groups)
}

// applyExample returns the editor contents of an example
func applyExample(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult(fmt.Errorf("expected 2 arguments: mode string, name string"))
	}

	state, err := play.ApplyExample(args[0].String(), args[1].String())
	if err != nil {
		return errorResult(err)
	}
	return toJS(state)
}

func main() {
	engine, err := eval.NewBuiltin()
	if err != nil {
		panic(err)
	}
	if play, err = playground.New(playground.Options{
		Registry: modes.Builtin(),
		Engine:   engine,
	}); err != nil {
		panic(err)
	}

	js.Global().Set("eval", js.FuncOf(evalExpr))
	js.Global().Set("check", js.FuncOf(checkExpr))
	js.Global().Set("encodeShare", js.FuncOf(encodeShare))
	js.Global().Set("decodeShare", js.FuncOf(decodeShare))
	js.Global().Set("modes", js.FuncOf(listModes))
	js.Global().Set("examples", js.FuncOf(listExamples))
	js.Global().Set("applyExample", js.FuncOf(applyExample))

	// Keep the program running
	select {}
}
