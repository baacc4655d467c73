package eval

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"gopkg.in/yaml.v3"
)

// The authorizer slot describes canned authorization decisions, so policies
// using the authorizer variable can be tried without an API server:
//
//	paths:
//	  /healthz:
//	    checks:
//	      get: {decision: allow}
//	groups:
//	  apps:
//	    resources:
//	      deployments:
//	        checks:
//	          <namespace>:
//	            <name>:
//	              create: {decision: allow, reason: ok}
//	serviceAccounts:
//	  <namespace>:
//	    <name>: <authorizer>
//
// Lookups that are not described yield a decision that is neither allowed
// nor errored, like a real authorizer without an opinion.
var (
	authorizerType    = types.NewTypeValue("kubernetes.authorization.Authorizer", traits.ReceiverType)
	pathCheckType     = types.NewTypeValue("kubernetes.authorization.PathCheck", traits.ReceiverType)
	groupCheckType    = types.NewTypeValue("kubernetes.authorization.GroupCheck", traits.ReceiverType)
	resourceCheckType = types.NewTypeValue("kubernetes.authorization.ResourceCheck", traits.ReceiverType)
	decisionType      = types.NewTypeValue("kubernetes.authorization.Decision", traits.ReceiverType)
)

// receiverOnly implements the parts of ref.Val shared by values that expose
// receiver functions and no fields
type receiverOnly struct{}

func (receiverOnly) ConvertToNative(typeDesc reflect.Type) (any, error) {
	return nil, fmt.Errorf("authorizer values cannot be converted to %v", typeDesc)
}

func (receiverOnly) Equal(other ref.Val) ref.Val {
	return types.MaybeNoSuchOverloadErr(other)
}

func (receiverOnly) Value() any {
	return nil
}

// convertReceiver implements ConvertToType for receiver values
func convertReceiver(val ref.Val, typeVal ref.Type) ref.Val {
	switch typeVal {
	case val.Type():
		return val
	case types.TypeType:
		return val.Type().(ref.Val)
	}
	return types.NewErr("type conversion error from '%s' to '%s'", val.Type().TypeName(), typeVal.TypeName())
}

// stringArg reads a trimmed string argument of a receiver call
func stringArg(args []ref.Val, i int) (string, bool) {
	if len(args) <= i {
		return "", false
	}
	s, ok := args[i].(types.String)
	return strings.TrimSpace(string(s)), ok
}

// Authorizer answers authorization checks from the authorizer slot
type Authorizer struct {
	receiverOnly    `yaml:"-"`
	Paths           map[string]*PathCheck             `yaml:"paths,omitempty"`
	Groups          map[string]*GroupCheck            `yaml:"groups,omitempty"`
	ServiceAccounts map[string]map[string]*Authorizer `yaml:"serviceAccounts,omitempty"`
}

func (a *Authorizer) Type() ref.Type { return authorizerType }
func (a *Authorizer) ConvertToType(t ref.Type) ref.Val { return convertReceiver(a, t) }

// Receive implements path(p), group(g) and serviceAccount(namespace, name)
func (a *Authorizer) Receive(function string, overload string, args []ref.Val) ref.Val {
	switch function {
	case "path":
		path, ok := stringArg(args, 0)
		if !ok || len(args) != 1 {
			break
		}
		if path == "" {
			return types.NewErr("path must not be empty")
		}
		if check, ok := a.Paths[path]; ok && check != nil {
			return check
		}
		return &PathCheck{}
	case "group":
		group, ok := stringArg(args, 0)
		if !ok || len(args) != 1 {
			break
		}
		if check, ok := a.Groups[group]; ok && check != nil {
			return check
		}
		return &GroupCheck{}
	case "serviceAccount":
		namespace, ok := stringArg(args, 0)
		name, ok2 := stringArg(args, 1)
		if !ok || !ok2 || len(args) != 2 {
			break
		}
		if sa, ok := a.ServiceAccounts[namespace][name]; ok && sa != nil {
			return sa
		}
		return &Authorizer{}
	}
	return types.NewErr("no such overload: authorizer.%s with %d arguments", function, len(args))
}

// PathCheck checks a non-resource path
type PathCheck struct {
	receiverOnly `yaml:"-"`
	Checks       map[string]*Decision `yaml:"checks,omitempty"`
}

func (p *PathCheck) Type() ref.Type { return pathCheckType }
func (p *PathCheck) ConvertToType(t ref.Type) ref.Val { return convertReceiver(p, t) }

// Receive implements check(verb)
func (p *PathCheck) Receive(function string, overload string, args []ref.Val) ref.Val {
	verb, ok := stringArg(args, 0)
	if function != "check" || !ok || len(args) != 1 {
		return types.NoSuchOverloadErr()
	}
	if verb == "" {
		return types.NewErr("must specify check")
	}
	if decision, ok := p.Checks[verb]; ok && decision != nil {
		return decision
	}
	return &Decision{}
}

// GroupCheck selects a resource of an API group
type GroupCheck struct {
	receiverOnly `yaml:"-"`
	Resources    map[string]*ResourceCheck `yaml:"resources,omitempty"`
}

func (g *GroupCheck) Type() ref.Type { return groupCheckType }
func (g *GroupCheck) ConvertToType(t ref.Type) ref.Val { return convertReceiver(g, t) }

// Receive implements resource(name)
func (g *GroupCheck) Receive(function string, overload string, args []ref.Val) ref.Val {
	resource, ok := stringArg(args, 0)
	if function != "resource" || !ok || len(args) != 1 {
		return types.NoSuchOverloadErr()
	}
	if check, ok := g.Resources[resource]; ok && check != nil {
		return check.scoped("", "", false)
	}
	return (&ResourceCheck{}).scoped("", "", false)
}

// ResourceCheck checks a resource, optionally narrowed to a subresource, a
// namespace and a name. Checks are keyed by namespace, then name, then verb;
// the empty key stands for "any".
type ResourceCheck struct {
	receiverOnly `yaml:"-"`
	Subresources map[string]*ResourceCheck                  `yaml:"subresources,omitempty"`
	Checks       map[string]map[string]map[string]*Decision `yaml:"checks,omitempty"`

	namespace     string
	name          string
	inSubresource bool
}

func (r *ResourceCheck) Type() ref.Type { return resourceCheckType }
func (r *ResourceCheck) ConvertToType(t ref.Type) ref.Val { return convertReceiver(r, t) }

// scoped returns a copy narrowed to namespace and name, leaving the decoded
// value untouched
func (r *ResourceCheck) scoped(namespace, name string, inSubresource bool) *ResourceCheck {
	c := *r
	c.namespace, c.name, c.inSubresource = namespace, name, inSubresource
	return &c
}

// Receive implements subresource(s), namespace(ns), name(n) and check(verb)
func (r *ResourceCheck) Receive(function string, overload string, args []ref.Val) ref.Val {
	arg, ok := stringArg(args, 0)
	if !ok || len(args) != 1 {
		return types.NoSuchOverloadErr()
	}

	switch function {
	case "subresource":
		if r.inSubresource {
			return types.NewErr("subresource already invoked")
		}
		if arg == "" {
			return r
		}
		if sub, ok := r.Subresources[arg]; ok && sub != nil {
			return sub.scoped(r.namespace, r.name, true)
		}
		return (&ResourceCheck{}).scoped(r.namespace, r.name, true)
	case "namespace":
		if r.namespace != "" {
			return types.NewErr("namespace already invoked")
		}
		return r.scoped(arg, r.name, r.inSubresource)
	case "name":
		if r.name != "" {
			return types.NewErr("name already invoked")
		}
		return r.scoped(r.namespace, arg, r.inSubresource)
	case "check":
		if arg == "" {
			return types.NewErr("must specify check")
		}
		if decision, ok := r.Checks[r.namespace][r.name][arg]; ok && decision != nil {
			return decision
		}
		return &Decision{}
	}
	return types.NoSuchOverloadErr()
}

// Decision is the outcome of an authorization check
type Decision struct {
	receiverOnly `yaml:"-"`
	Error        string `yaml:"error,omitempty"`
	Decision     string `yaml:"decision,omitempty"`
	Reason       string `yaml:"reason,omitempty"`
}

func (d *Decision) Type() ref.Type { return decisionType }
func (d *Decision) ConvertToType(t ref.Type) ref.Val { return convertReceiver(d, t) }

// Receive implements allowed(), reason(), errored() and error()
func (d *Decision) Receive(function string, overload string, args []ref.Val) ref.Val {
	if len(args) != 0 {
		return types.NoSuchOverloadErr()
	}
	switch function {
	case "allowed":
		return types.Bool(d.Decision == "allow")
	case "reason":
		return types.String(d.Reason)
	case "errored":
		return types.Bool(d.Error != "")
	case "error":
		return types.String(d.Error)
	}
	return types.NoSuchOverloadErr()
}

// parseAuthorizer decodes the authorizer slot. An empty slot gives an
// authorizer without any decisions.
func parseAuthorizer(text string) (*Authorizer, error) {
	authorizer := &Authorizer{}
	if err := yaml.Unmarshal([]byte(text), authorizer); err != nil {
		return nil, fmt.Errorf("failed to decode input for the authorizer: %w", err)
	}
	return authorizer, nil
}

// requestResource is the resource check preconfigured with the resource,
// namespace and name of the admission request, or nil without a request
func requestResource(authorizer *Authorizer, request map[string]interface{}) ref.Val {
	if request == nil {
		return nil
	}
	resource, _ := request["resource"].(map[string]interface{})
	str := func(m map[string]interface{}, key string) string {
		s, _ := m[key].(string)
		return strings.TrimSpace(s)
	}

	var val ref.Val = authorizer
	calls := [][2]string{
		{"group", str(resource, "group")},
		{"resource", str(resource, "resource")},
		{"namespace", str(request, "namespace")},
		{"name", str(request, "name")},
	}
	for _, call := range calls {
		receiver, ok := val.(traits.Receiver)
		if !ok {
			return val
		}
		val = receiver.Receive(call[0], "", []ref.Val{types.String(call[1])})
	}
	return val
}
