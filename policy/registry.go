package policy

import (
	"errors"
	"fmt"

	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/model"
)

// Kinds accepted by New.
const (
	KindMajority = "majority"
	KindStubborn = "stubborn"
	KindConstant = "constant"
	KindSequence = "sequence"
	KindVoter    = "voter"
	KindDelegate = "delegate"
)

// Kinds lists every policy kind New understands.
var Kinds = []string{KindMajority, KindStubborn, KindConstant, KindSequence, KindVoter, KindDelegate}

// Options carry the dependencies some policy kinds need.
type Options struct {
	// Model backs delegate policies.
	Model model.Model
	// Delegate options applied to every delegate policy before its params.
	Delegate []func(o *DelegateOptions)
}

// New builds a policy of kind from loosely typed params, as decoded from an
// experiment file.
func New(kind string, params map[string]any, optFns ...func(o *Options)) (core.Policy, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	switch kind {
	case KindMajority:
		return MajorityCopy{}, nil
	case KindStubborn:
		return Stubborn{}, nil
	case KindConstant:
		choice, err := stringParam(params, "choice")
		if err != nil {
			return nil, err
		}
		if choice == "" {
			return nil, errors.New("constant policy needs a choice")
		}
		justification, err := stringParam(params, "justification")
		if err != nil {
			return nil, err
		}
		return Constant{Choice: choice, Justification: justification}, nil
	case KindSequence:
		choices, err := stringsParam(params, "choices")
		if err != nil {
			return nil, err
		}
		if len(choices) == 0 {
			return nil, errors.New("sequence policy needs choices")
		}
		return Sequence{Choices: choices}, nil
	case KindVoter:
		p, err := floatParam(params, "p", 1)
		if err != nil {
			return nil, err
		}
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("voter probability must be in [0,1], got %g", p)
		}
		return Voter{P: p}, nil
	case KindDelegate:
		choices, err := stringsParam(params, "choices")
		if err != nil {
			return nil, err
		}
		instructions, err := stringParam(params, "instructions")
		if err != nil {
			return nil, err
		}
		fns := append([]func(o *DelegateOptions){}, opts.Delegate...)
		fns = append(fns, func(o *DelegateOptions) {
			if len(choices) > 0 {
				o.Choices = choices
			}
			if instructions != "" {
				o.Instructions = instructions
			}
		})
		return NewDelegate(opts.Model, fns...)
	default:
		return nil, fmt.Errorf("unknown policy kind %q", kind)
	}
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q: expected string, got %T", key, v)
	}
	return s, nil
}

func stringsParam(params map[string]any, key string) ([]string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch vs := v.(type) {
	case []string:
		return vs, nil
	case []any:
		out := make([]string, len(vs))
		for i, item := range vs {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("param %q[%d]: expected string, got %T", key, i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("param %q: expected list of strings, got %T", key, v)
	}
}

func floatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("param %q: expected number, got %T", key, v)
	}
}
