package eval

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"gopkg.in/yaml.v3"
)

// Variables available to admission expressions. Composited variables are
// bound one by one as variables.<name>, and the authorizer preconfigured with
// the request resource as authorizer.requestResource.
const (
	varObject          = "object"
	varOldObject       = "oldObject"
	varRequest         = "request"
	varNamespaceObject = "namespaceObject"
	varAuthorizer      = "authorizer"
	varRequestResource = "authorizer.requestResource"
	varVariables       = "variables"
)

// Input slots of the admission modes
const (
	SlotOriginal   = "dataOriginal"
	SlotUpdated    = "dataUpdated"
	SlotNamespace  = "dataNamespace"
	SlotRequest    = "dataRequest"
	SlotAuthorizer = "dataAuthorizer"
)

type namedExpression struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
}

type validation struct {
	Expression        string `yaml:"expression"`
	Message           string `yaml:"message"`
	MessageExpression string `yaml:"messageExpression"`
	Reason            string `yaml:"reason"`
}

type auditAnnotation struct {
	Key             string `yaml:"key"`
	ValueExpression string `yaml:"valueExpression"`
}

type admissionPolicy struct {
	Kind string `yaml:"kind"`
	Spec struct {
		MatchConditions  []namedExpression `yaml:"matchConditions"`
		Variables        []namedExpression `yaml:"variables"`
		Validations      []validation      `yaml:"validations"`
		AuditAnnotations []auditAnnotation `yaml:"auditAnnotations"`
	} `yaml:"spec"`
}

type webhookConfiguration struct {
	Kind     string `yaml:"kind"`
	Webhooks []struct {
		Name            string            `yaml:"name"`
		MatchConditions []namedExpression `yaml:"matchConditions"`
	} `yaml:"webhooks"`
}

// EvalVariable is the outcome of one composited variable
type EvalVariable struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
	Cost  *uint64     `json:"cost,omitempty"`
	Error *string     `json:"error,omitempty"`
}

// EvalResult is the outcome of one policy expression
type EvalResult struct {
	Name    *string     `json:"name,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Cost    *uint64     `json:"cost,omitempty"`
	Error   *string     `json:"error,omitempty"`
	Message interface{} `json:"message,omitempty"`
}

// PolicyResponse is the output document of the admission modes
type PolicyResponse struct {
	MatchConditionVariables []*EvalVariable `json:"matchConditionVariables,omitempty"`
	MatchConditions         []*EvalResult   `json:"matchConditions,omitempty"`
	Variables               []*EvalVariable `json:"validationVariables,omitempty"`
	Validations             []*EvalResult   `json:"validations,omitempty"`
	AuditAnnotations        []*EvalResult   `json:"auditAnnotations,omitempty"`
	WebhookMatchConditions  [][]*EvalResult `json:"webhookMatchConditions,omitempty"`
	Cost                    uint64          `json:"cost"`
}

// evaluator runs policy expressions in one environment and sums their cost
type evaluator struct {
	ctx        context.Context
	env        *cel.Env
	prgOpts    []cel.ProgramOption
	activation map[string]interface{}
	variables  []*lazyVariable
	cost       uint64
}

// lazyVariable is a composited variable, evaluated the first time an
// expression refers to it
type lazyVariable struct {
	name    string
	ast     *cel.Ast
	running bool
	done    bool
	val     ref.Val
	cost    *uint64
}

func (e *evaluator) parse(expr string) (*cel.Ast, error) {
	ast, issues := e.env.Parse(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to parse expression %s: %w", expr, issues.Err())
	}
	return ast, nil
}

// eval runs a parsed expression. Anything that goes wrong is folded into the
// returned value.
func (e *evaluator) eval(expr string, ast *cel.Ast) (ref.Val, *uint64) {
	prg, err := e.env.Program(ast, e.prgOpts...)
	if err != nil {
		return types.NewErr("unexpected error parsing expression %s: %v", expr, err), nil
	}
	val, details, err := prg.ContextEval(e.ctx, e.activation)
	if err != nil {
		return types.NewErr("unexpected error evaluating expression %s: %v", expr, err), nil
	}

	var cost *uint64
	if details != nil {
		cost = details.ActualCost()
		if cost != nil {
			e.cost += *cost
		}
	}
	return val, cost
}

// run evaluates expr. Parse failures are returned as errors.
func (e *evaluator) run(expr string) (ref.Val, *uint64, error) {
	ast, err := e.parse(expr)
	if err != nil {
		return nil, nil, err
	}
	val, cost := e.eval(expr, ast)
	return val, cost, nil
}

func (e *evaluator) result(name string, val ref.Val, cost *uint64) *EvalResult {
	res := &EvalResult{Cost: cost}
	if name != "" {
		res.Name = &name
	}
	res.Result, res.Error = resultOf(val)
	return res
}

// bindVariables parses composited variables upfront and binds each one
// lazily, so only the variables an expression uses are evaluated and counted.
func (e *evaluator) bindVariables(vars []namedExpression) error {
	e.variables = make([]*lazyVariable, 0, len(vars))
	for _, v := range vars {
		ast, err := e.parse(v.Expression)
		if err != nil {
			return fmt.Errorf("failed to initialize variable %s: %w", v.Name, err)
		}
		lv := &lazyVariable{name: v.Name, ast: ast}
		e.variables = append(e.variables, lv)
		e.activation[varVariables+"."+v.Name] = func() ref.Val {
			return e.variable(lv)
		}
	}
	return nil
}

func (e *evaluator) variable(v *lazyVariable) ref.Val {
	if v.done {
		return v.val
	}
	if v.running {
		return types.NewErr("variable %s refers to itself", v.name)
	}
	v.running = true
	v.val, v.cost = e.eval(v.name, v.ast)
	v.running, v.done = false, true
	return v.val
}

// evaluatedVariables reports the variables evaluated so far, in declaration
// order
func (e *evaluator) evaluatedVariables() []*EvalVariable {
	var out []*EvalVariable
	for _, v := range e.variables {
		if !v.done {
			continue
		}
		item := &EvalVariable{Name: v.name, Cost: v.cost}
		item.Value, item.Error = resultOf(v.val)
		out = append(out, item)
	}
	return out
}

func (e *evaluator) matchConditions(conds []namedExpression) ([]*EvalResult, bool, error) {
	matched := true
	out := make([]*EvalResult, 0, len(conds))
	for _, cond := range conds {
		val, cost, err := e.run(cond.Expression)
		if err != nil {
			return nil, false, err
		}
		matched = matched && val == types.True
		out = append(out, e.result(cond.Name, val, cost))
	}
	return out, matched, nil
}

// admissionInputs holds the decoded documents of the admission modes
type admissionInputs struct {
	object, oldObject, request, namespace map[string]interface{}
	authorizer                            *Authorizer
}

// decodeAdmissionInputs decodes every input slot. Missing documents stay nil.
func decodeAdmissionInputs(args map[string]string) (*admissionInputs, error) {
	in := &admissionInputs{}
	slots := []struct {
		slot, what string
		dst        *map[string]interface{}
	}{
		{SlotOriginal, "old object", &in.oldObject},
		{SlotUpdated, "object", &in.object},
		{SlotRequest, "request", &in.request},
		{SlotNamespace, "namespace", &in.namespace},
	}
	for _, s := range slots {
		if err := yaml.Unmarshal([]byte(args[s.slot]), s.dst); err != nil {
			return nil, fmt.Errorf("failed to decode input for the %s: %w", s.what, err)
		}
	}

	var err error
	if in.authorizer, err = parseAuthorizer(args[SlotAuthorizer]); err != nil {
		return nil, err
	}
	return in, nil
}

// activation binds the inputs as CEL values, with null for missing
// documents. The namespace object is only bound with withNamespace.
func (in *admissionInputs) activation(withNamespace bool) map[string]interface{} {
	doc := func(m map[string]interface{}) ref.Val {
		if m == nil {
			return types.NullValue
		}
		return toValue(m)
	}

	activation := map[string]interface{}{
		varObject:     doc(in.object),
		varOldObject:  doc(in.oldObject),
		varRequest:    doc(in.request),
		varAuthorizer: in.authorizer,
	}
	if rr := requestResource(in.authorizer, in.request); rr != nil {
		activation[varRequestResource] = rr
	}
	if withNamespace {
		activation[varNamespaceObject] = doc(in.namespace)
	}
	return activation
}

// admissionEnv declares the admission variables. Match conditions run without
// the namespace object.
func (b *Builtin) admissionEnv(withNamespace bool) (*cel.Env, error) {
	opts := []cel.EnvOption{
		cel.Variable(varObject, cel.DynType),
		cel.Variable(varOldObject, cel.DynType),
		cel.Variable(varRequest, cel.DynType),
		cel.Variable(varAuthorizer, cel.DynType),
		cel.Variable(varRequestResource, cel.DynType),
		cel.Variable(varVariables, cel.MapType(cel.StringType, cel.DynType)),
	}
	if withNamespace {
		opts = append(opts, cel.Variable(varNamespaceObject, cel.DynType))
	}
	return b.newEnv(opts...)
}

// newEvaluator prepares an evaluator with the composited variables bound
func (b *Builtin) newEvaluator(ctx context.Context, in *admissionInputs, withNamespace bool, vars []namedExpression) (*evaluator, error) {
	env, err := b.admissionEnv(withNamespace)
	if err != nil {
		return nil, err
	}
	e := &evaluator{ctx: ctx, env: env, prgOpts: b.prgOpts, activation: in.activation(withNamespace)}
	if err := e.bindVariables(vars); err != nil {
		return nil, err
	}
	return e, nil
}

// execValidatingAdmissionPolicy evaluates a ValidatingAdmissionPolicy: match
// conditions first, then, if all of them hold, validations and audit
// annotations. Audit annotations are only produced when every validation
// passes. Variables are evaluated on demand in both phases and reported once
// used.
func execValidatingAdmissionPolicy(ctx context.Context, b *Builtin, args map[string]string) (string, error) {
	var policy admissionPolicy
	if err := yaml.Unmarshal([]byte(args["vap"]), &policy); err != nil {
		return "", fmt.Errorf("failed to decode ValidatingAdmissionPolicy: %w", err)
	}
	if policy.Kind != "" && policy.Kind != "ValidatingAdmissionPolicy" {
		return "", fmt.Errorf("expected ValidatingAdmissionPolicy, received %s", policy.Kind)
	}

	in, err := decodeAdmissionInputs(args)
	if err != nil {
		return "", err
	}

	match, err := b.newEvaluator(ctx, in, false, policy.Spec.Variables)
	if err != nil {
		return "", err
	}
	resp := &PolicyResponse{}

	var matched bool
	resp.MatchConditions, matched, err = match.matchConditions(policy.Spec.MatchConditions)
	if err != nil {
		return "", err
	}
	resp.MatchConditionVariables = match.evaluatedVariables()
	resp.Cost = match.cost

	if !matched {
		return marshalOutput(resp)
	}

	e, err := b.newEvaluator(ctx, in, true, policy.Spec.Variables)
	if err != nil {
		return "", err
	}

	passed := true
	for _, v := range policy.Spec.Validations {
		val, cost, err := e.run(v.Expression)
		if err != nil {
			return "", err
		}
		res := e.result("", val, cost)
		if val != types.True && res.Error == nil {
			passed = false
			switch {
			case v.Message != "":
				res.Message = v.Message
			case v.MessageExpression != "":
				msg, _, err := e.run(v.MessageExpression)
				if err != nil {
					return "", err
				}
				res.Message, _ = resultOf(msg)
			}
		} else if res.Error != nil {
			passed = false
		}
		resp.Validations = append(resp.Validations, res)
	}

	if passed {
		for _, a := range policy.Spec.AuditAnnotations {
			val, cost, err := e.run(a.ValueExpression)
			if err != nil {
				return "", err
			}
			res := &EvalResult{Name: &a.Key, Cost: cost}
			res.Message, res.Error = resultOf(val)
			resp.AuditAnnotations = append(resp.AuditAnnotations, res)
		}
	}

	resp.Variables = e.evaluatedVariables()
	resp.Cost += e.cost
	return marshalOutput(resp)
}

// execWebhooks evaluates the match conditions of every webhook in a
// Validating or Mutating WebhookConfiguration.
func execWebhooks(ctx context.Context, b *Builtin, args map[string]string) (string, error) {
	var config webhookConfiguration
	if err := yaml.Unmarshal([]byte(args["webhooks"]), &config); err != nil {
		return "", fmt.Errorf("failed to decode webhook configuration: %w", err)
	}
	switch config.Kind {
	case "", "ValidatingWebhookConfiguration", "MutatingWebhookConfiguration":
	default:
		return "", fmt.Errorf("expected ValidatingWebhookConfiguration or MutatingWebhookConfiguration, received %s", config.Kind)
	}

	in, err := decodeAdmissionInputs(args)
	if err != nil {
		return "", err
	}
	e, err := b.newEvaluator(ctx, in, false, nil)
	if err != nil {
		return "", err
	}

	resp := &PolicyResponse{WebhookMatchConditions: [][]*EvalResult{}}

	for _, webhook := range config.Webhooks {
		results, _, err := e.matchConditions(webhook.MatchConditions)
		if err != nil {
			return "", err
		}
		resp.WebhookMatchConditions = append(resp.WebhookMatchConditions, results)
	}

	resp.Cost = e.cost
	return marshalOutput(resp)
}
