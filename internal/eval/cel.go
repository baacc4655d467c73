package eval

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
	"gopkg.in/yaml.v3"
)

// DataSlot is the input slot of the cel mode
const DataSlot = "data"

// CELResponse is the output document of the cel mode
type CELResponse struct {
	Result interface{} `json:"result"`
	Cost   *uint64     `json:"cost,omitempty"`
}

// parseData decodes a YAML or JSON document into top-level variables
func parseData(text string) (map[string]interface{}, error) {
	vars := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(text), &vars); err != nil {
		return nil, fmt.Errorf("failed to decode input data: %w", err)
	}
	return vars, nil
}

func dataDecls(vars map[string]interface{}) []cel.EnvOption {
	var varDecls []*exprpb.Decl
	for name, val := range vars {
		varDecls = append(varDecls, decls.NewVar(name, inferDeclType(val)))
	}
	if len(varDecls) == 0 {
		return nil
	}
	return []cel.EnvOption{cel.Declarations(varDecls...)}
}

// execCEL evaluates a single expression against the variables of the data slot
func execCEL(ctx context.Context, b *Builtin, args map[string]string) (string, error) {
	vars, err := parseData(args[DataSlot])
	if err != nil {
		return "", err
	}

	env, err := b.newEnv(dataDecls(vars)...)
	if err != nil {
		return "", err
	}

	ast, issues := env.Compile(args["cel"])
	if issues != nil && issues.Err() != nil {
		return "", fmt.Errorf("failed to compile the CEL expression: %s", issues.String())
	}

	prg, err := env.Program(ast, b.prgOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to instantiate CEL program: %w", err)
	}

	out, details, err := prg.ContextEval(ctx, activation(vars))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate: %w", err)
	}

	resp := CELResponse{Result: ValueToJSON(out)}
	if details != nil {
		resp.Cost = details.ActualCost()
	}
	return marshalOutput(resp)
}
