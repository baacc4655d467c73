package common

import "context"

// Request is one evaluation handed to an engine running in another runtime
type Request struct {
	Mode string            `json:"mode"`
	Args map[string]string `json:"args"`
}

// Response is what an engine hands back for one evaluation. Output holds the
// result document, or the error message verbatim when IsError is set.
type Response struct {
	Output  string `json:"output"`
	IsError bool   `json:"isError"`
}

// NewResponse folds an evaluation outcome into a Response
func NewResponse(out string, err error) Response {
	if err != nil {
		return Response{Output: err.Error(), IsError: true}
	}
	return Response{Output: out}
}

// Location points at a position in the expression source
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Issue represents a problem found while compiling an expression
type Issue struct {
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
}

// Engine evaluates an expression for a mode. args carries the expression
// under the mode id and every input under its slot id.
type Engine interface {
	Evaluate(ctx context.Context, mode string, args map[string]string) Response
}

// Checker reports compile issues for the expression in args without
// evaluating it
type Checker interface {
	Check(mode string, args map[string]string) ([]Issue, error)
}
