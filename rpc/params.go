package rpc

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"

	"massa-api/apierr"
)

// params holds the arguments of one call by name. Positional arrays are mapped
// to names in declaration order.
type params map[string]jsoniter.RawMessage

func parseParams(raw jsoniter.RawMessage, names []string) (params, error) {
	out := params{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}

	switch trimmed[0] {
	case '[':
		var positional []jsoniter.RawMessage
		if err := json.Unmarshal(trimmed, &positional); err != nil {
			return nil, apierr.InvalidParams("malformed params: %v", err)
		}
		if len(positional) > len(names) {
			return nil, apierr.InvalidParams("expected at most %d params, got %d", len(names), len(positional))
		}
		for i, v := range positional {
			out[names[i]] = v
		}
	case '{':
		var named map[string]jsoniter.RawMessage
		if err := json.Unmarshal(trimmed, &named); err != nil {
			return nil, apierr.InvalidParams("malformed params: %v", err)
		}
		for name, v := range named {
			if !contains(names, name) {
				return nil, apierr.InvalidParams("unknown param %q", name)
			}
			out[name] = v
		}
	default:
		return nil, apierr.InvalidParams("params must be an array or an object")
	}
	return out, nil
}

// decode fills v from the named param. A missing or null optional param leaves v untouched.
func (p params) decode(name string, required bool, v interface{}) error {
	raw, ok := p[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if required {
			return apierr.InvalidParams("missing param %q", name)
		}
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apierr.InvalidParams("param %q: %v", name, err)
	}
	return nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
