package plan

import (
	"bytes"
	"encoding/json"
	"fmt"

	yaml "gopkg.in/yaml.v3"
)

// decode parses a plan document into target. The document is JSON or YAML; YAML is first
// converted to the equivalent JSON so that the same struct tags apply to both.
func decode(data []byte, target interface{}) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) != 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if err := json.Unmarshal(data, target); err == nil {
			return nil
		}
	}
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	converted, err := jsonCompatible(doc)
	if err != nil {
		return err
	}
	jsonData, err := json.Marshal(converted)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}

// jsonCompatible rewrites a parsed YAML value so that every map has string keys.
func jsonCompatible(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			converted, err := jsonCompatible(item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			converted, err := jsonCompatible(item)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			name, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("plan contains a map key of type %T; only string keys are allowed", key)
			}
			converted, err := jsonCompatible(item)
			if err != nil {
				return nil, err
			}
			out[name] = converted
		}
		return out, nil
	default:
		return value, nil
	}
}
