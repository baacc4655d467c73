package eval

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"
	"gopkg.in/yaml.v3"

	commonTypes "github.com/invakid404/cel-playground/internal/common"
	"github.com/invakid404/cel-playground/internal/modes"
)

// Check reports compile issues without evaluating anything. For the cel mode
// the expression is type checked against the declared data variables; for the
// admission modes every expression of the document is parsed.
func (b *Builtin) Check(mode string, args map[string]string) ([]commonTypes.Issue, error) {
	switch mode {
	case "cel":
		vars, err := parseData(args[DataSlot])
		if err != nil {
			return nil, err
		}
		env, err := b.newEnv(dataDecls(vars)...)
		if err != nil {
			return nil, err
		}
		return compileIssues(env, args[mode], true), nil
	case "vap", "webhooks":
		env, err := b.admissionEnv(true)
		if err != nil {
			return nil, err
		}
		exprs, err := policyExpressions(mode, args[mode])
		if err != nil {
			return nil, err
		}
		var issues []commonTypes.Issue
		for _, expr := range exprs {
			issues = append(issues, compileIssues(env, expr, false)...)
		}
		return issues, nil
	default:
		return nil, fmt.Errorf("%w: %q", modes.ErrUnknownMode, mode)
	}
}

// compileIssues parses, and optionally checks, expr and converts the issues
func compileIssues(env *cel.Env, expr string, check bool) []commonTypes.Issue {
	source := common.NewTextSource(expr)

	ast, iss := env.ParseSource(source)
	if check && iss.Err() == nil {
		_, iss = env.Check(ast)
	}

	issues := []commonTypes.Issue{}
	if iss == nil {
		return issues
	}
	for _, err := range iss.Errors() {
		issues = append(issues, commonTypes.Issue{
			Severity: "error",
			Message:  err.Message,
			Location: &commonTypes.Location{
				Line:   err.Location.Line(),
				Column: err.Location.Column(),
			},
		})
	}
	return issues
}

// policyExpressions lists every CEL expression of an admission document
func policyExpressions(mode, doc string) ([]string, error) {
	var exprs []string
	if mode == "webhooks" {
		var config webhookConfiguration
		if err := yaml.Unmarshal([]byte(doc), &config); err != nil {
			return nil, fmt.Errorf("failed to decode webhook configuration: %w", err)
		}
		for _, webhook := range config.Webhooks {
			for _, cond := range webhook.MatchConditions {
				exprs = append(exprs, cond.Expression)
			}
		}
		return exprs, nil
	}

	var policy admissionPolicy
	if err := yaml.Unmarshal([]byte(doc), &policy); err != nil {
		return nil, fmt.Errorf("failed to decode ValidatingAdmissionPolicy: %w", err)
	}
	for _, c := range policy.Spec.MatchConditions {
		exprs = append(exprs, c.Expression)
	}
	for _, v := range policy.Spec.Variables {
		exprs = append(exprs, v.Expression)
	}
	for _, v := range policy.Spec.Validations {
		exprs = append(exprs, v.Expression)
		if v.MessageExpression != "" {
			exprs = append(exprs, v.MessageExpression)
		}
	}
	for _, a := range policy.Spec.AuditAnnotations {
		exprs = append(exprs, a.ValueExpression)
	}
	return exprs, nil
}
