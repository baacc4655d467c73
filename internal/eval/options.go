package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/cel-go/cel"
	"github.com/mitchellh/mapstructure"
)

// ErrUnknownEnvOption is returned when an option type is not in the registry
var ErrUnknownEnvOption = errors.New("unknown environment option")

// EnvOptionConfig names an environment option together with its parameters,
// as it appears in the configuration file
type EnvOptionConfig struct {
	Type   string                 `mapstructure:"type" json:"type"`
	Params map[string]interface{} `mapstructure:"params" json:"params,omitempty"`
}

// DefaultEnvOptions are applied when the configuration names none
var DefaultEnvOptions = []EnvOptionConfig{
	{Type: "optionalTypes"},
	{Type: "crossTypeNumericComparisons"},
}

// envOptionBuilder builds an option from its parameters
type envOptionBuilder func(params map[string]interface{}) (cel.EnvOption, error)

var envOptionBuilders = map[string]envOptionBuilder{
	"optionalTypes":               optionalTypes,
	"crossTypeNumericComparisons": crossTypeNumericComparisons,
	"astValidators":               astValidators,
	"parserLimits":                parserLimits,
}

// decodeParams fills dst from the parameters of an option, rejecting unknown
// keys
func decodeParams(params map[string]interface{}, dst interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(params)
}

func optionalTypes(params map[string]interface{}) (cel.EnvOption, error) {
	var p struct {
		Version *uint32 `mapstructure:"version"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Version != nil {
		return cel.OptionalTypes(cel.OptionalTypesVersion(*p.Version)), nil
	}
	return cel.OptionalTypes(), nil
}

func crossTypeNumericComparisons(params map[string]interface{}) (cel.EnvOption, error) {
	// Enabled unless explicitly turned off
	p := struct {
		Enabled bool `mapstructure:"enabled"`
	}{Enabled: true}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return cel.CrossTypeNumericComparisons(p.Enabled), nil
}

// astValidators enables the compile time validators of cel-go. With no
// parameters every literal validator is on.
func astValidators(params map[string]interface{}) (cel.EnvOption, error) {
	p := struct {
		Durations               bool `mapstructure:"durations"`
		Timestamps              bool `mapstructure:"timestamps"`
		Regexes                 bool `mapstructure:"regexes"`
		HomogeneousAggregates   bool `mapstructure:"homogeneousAggregates"`
		ComprehensionNestingMax int  `mapstructure:"comprehensionNestingLimit"`
	}{Durations: true, Timestamps: true, Regexes: true}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	var validators []cel.ASTValidator
	if p.Durations {
		validators = append(validators, cel.ValidateDurationLiterals())
	}
	if p.Timestamps {
		validators = append(validators, cel.ValidateTimestampLiterals())
	}
	if p.Regexes {
		validators = append(validators, cel.ValidateRegexLiterals())
	}
	if p.HomogeneousAggregates {
		validators = append(validators, cel.ValidateHomogeneousAggregateLiterals())
	}
	if p.ComprehensionNestingMax > 0 {
		validators = append(validators, cel.ValidateComprehensionNestingLimit(p.ComprehensionNestingMax))
	}
	return cel.ASTValidators(validators...), nil
}

func parserLimits(params map[string]interface{}) (cel.EnvOption, error) {
	var p struct {
		Recursion      int `mapstructure:"recursion"`
		ExpressionSize int `mapstructure:"expressionSize"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	var opts []cel.EnvOption
	if p.Recursion > 0 {
		opts = append(opts, cel.ParserRecursionLimit(p.Recursion))
	}
	if p.ExpressionSize > 0 {
		opts = append(opts, cel.ParserExpressionSizeLimit(p.ExpressionSize))
	}
	return cel.Lib(envOptionsLib(opts)), nil
}

// envOptionsLib bundles several options into one
type envOptionsLib []cel.EnvOption

func (l envOptionsLib) CompileOptions() []cel.EnvOption {
	return l
}

func (envOptionsLib) ProgramOptions() []cel.ProgramOption {
	return nil
}

// EnvOptions builds the environment options described by configs
func EnvOptions(configs []EnvOptionConfig) ([]cel.EnvOption, error) {
	opts := make([]cel.EnvOption, 0, len(configs))
	for _, config := range configs {
		build, ok := envOptionBuilders[config.Type]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEnvOption, config.Type)
		}
		opt, err := build(config.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to configure option %s: %w", config.Type, err)
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

// ParseEnvOptions parses a JSON array of option configurations
func ParseEnvOptions(configJSON string) ([]EnvOptionConfig, error) {
	var configs []EnvOptionConfig
	if err := json.Unmarshal([]byte(configJSON), &configs); err != nil {
		return nil, fmt.Errorf("failed to parse options configuration: %w", err)
	}
	if _, err := EnvOptions(configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// EnvOptionTypes returns the option types that can be configured, sorted
func EnvOptionTypes() []string {
	types := make([]string, 0, len(envOptionBuilders))
	for name := range envOptionBuilders {
		types = append(types, name)
	}
	slices.Sort(types)
	return types
}
