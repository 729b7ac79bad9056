package plan

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Variables maps a placeholder name to its value. A placeholder is written as <NAME>.
type Variables map[string]ldvalue.Value

// expand applies the constants and parameters declared in a plan document. Without parameters
// it yields one document; with parameters it yields one document per parameter set.
func expand(data []byte) ([]Source, error) {
	var header struct {
		Constants  Variables         `json:"constants"`
		Parameters []json.RawMessage `json:"parameters"`
	}
	if err := decode(data, &header); err != nil {
		return nil, err
	}
	if len(header.Constants) == 0 && len(header.Parameters) == 0 {
		return []Source{{Data: data}}, nil
	}
	paramSets, err := parameterSets(header.Parameters)
	if err != nil {
		return nil, err
	}
	if len(paramSets) == 0 {
		return []Source{{Data: substitute(data, header.Constants)}}, nil
	}
	ret := make([]Source, 0, len(paramSets))
	for _, params := range paramSets {
		// constants may refer to parameters and the other way around, so apply constants twice
		out := substitute(data, header.Constants)
		out = substitute(out, params)
		out = substitute(out, header.Constants)
		ret = append(ret, Source{Data: out, Params: params})
	}
	return ret, nil
}

// parameterSets accepts either a list of variable sets, which are used as they are, or a list
// of lists of variable sets, which are combined into every permutation.
func parameterSets(raw []json.RawMessage) ([]Variables, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	all, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	switch ldvalue.Parse(raw[0]).Type() {
	case ldvalue.ObjectType:
		var sets []Variables
		if err := json.Unmarshal(all, &sets); err != nil {
			return nil, err
		}
		return sets, nil
	case ldvalue.ArrayType:
		var lists [][]Variables
		if err := json.Unmarshal(all, &lists); err != nil {
			return nil, err
		}
		return permutations(lists), nil
	default:
		return nil, errors.New("parameters must be an array of objects or an array of arrays of objects")
	}
}

func permutations(lists [][]Variables) []Variables {
	for _, list := range lists {
		if len(list) == 0 {
			return nil
		}
	}
	var ret []Variables
	positions := make([]int, len(lists))
	for {
		merged := make(Variables)
		for i, list := range lists {
			for k, v := range list[positions[i]] {
				merged[k] = v
			}
		}
		ret = append(ret, merged)

		i := 0
		for ; i < len(lists); i++ {
			positions[i]++
			if positions[i] < len(lists[i]) {
				break
			}
			positions[i] = 0
		}
		if i == len(lists) {
			return ret
		}
	}
}

// substitute replaces placeholders. A placeholder that makes up an entire JSON string value is
// replaced by the variable's JSON value, so "<COUNT>" can become a number; anywhere else the
// variable is interpolated as text.
func substitute(data []byte, vars Variables) []byte {
	s := string(data)
	s = strings.ReplaceAll(s, `\u003c`, "<")
	s = strings.ReplaceAll(s, `\u003e`, ">")
	for name, value := range vars {
		asJSON := value.JSONString()
		s = strings.ReplaceAll(s, `"<`+name+`>"`, asJSON)
		asText := asJSON
		if value.IsString() {
			asText = value.StringValue()
		}
		s = strings.ReplaceAll(s, "<"+name+">", asText)
	}
	return []byte(s)
}
