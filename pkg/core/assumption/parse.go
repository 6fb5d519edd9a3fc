package assumption

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v2"

	"dcf_valuation/pkg/core/validate"
)

// Parse maps a JSON object onto Assumptions. Every required field must be
// present as a JSON number; null, strings, booleans and nested values are
// rejected and nothing defaults. Unknown keys are ignored. The result is
// validated before it is returned.
func Parse(data []byte) (*Assumptions, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, &validate.ValidationError{Reason: fmt.Sprintf("request body must be a JSON object: %v", err)}
	}
	if raw == nil {
		return nil, &validate.ValidationError{Reason: "request body must be a JSON object"}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, &validate.ValidationError{Reason: "request body has data after the JSON object"}
	}
	return fromMap(raw)
}

func fromMap(raw map[string]interface{}) (*Assumptions, error) {
	a := &Assumptions{}
	for _, f := range a.fields() {
		v, ok := raw[f.name]
		if !ok {
			return nil, validate.Invalid(f.name, "is required")
		}
		num, err := toFloat(v)
		if err != nil {
			return nil, validate.Invalid(f.name, "%v", err)
		}
		*f.ptr = num
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("must be a representable number (got %s)", n.String())
		}
		return f, nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case nil:
		return 0, fmt.Errorf("must not be null")
	default:
		return 0, fmt.Errorf("must be a number (got %T)", v)
	}
}

// ParseLenient accepts hand-edited input: strict JSON first, then repaired
// JSON (trailing commas, single quotes, comments), then Hjson. The field rules
// of Parse still apply to whatever decodes.
func ParseLenient(data []byte) (*Assumptions, error) {
	a, err := Parse(data)
	if err == nil {
		return a, nil
	}
	if validate.FieldOf(err) != "" || validate.KindOf(err) != validate.KindValidation {
		// Decoded fine; the values themselves are wrong. Repair won't help.
		return nil, err
	}

	if repaired, rerr := jsonrepair.RepairJSON(string(data)); rerr == nil {
		a, perr := Parse([]byte(repaired))
		if perr == nil || validate.FieldOf(perr) != "" || validate.KindOf(perr) != validate.KindValidation {
			return a, perr
		}
	}

	return parseHJSON(data)
}

func parseHJSON(data []byte) (*Assumptions, error) {
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, &validate.ValidationError{Reason: fmt.Sprintf("HJSON_PARSE_ERROR: %v", err)}
	}
	// Round-trip through JSON so numbers land as json.Number like Parse.
	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, &validate.ValidationError{Reason: fmt.Sprintf("JSON_MARSHAL_ERROR: %v", err)}
	}
	return Parse(jsonBytes)
}

func parseYAML(data []byte) (*Assumptions, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &validate.ValidationError{Reason: fmt.Sprintf("YAML_PARSE_ERROR: %v", err)}
	}
	if raw == nil {
		return nil, &validate.ValidationError{Reason: "assumption file is empty"}
	}
	return fromMap(raw)
}

// ParseFile loads an assumption set from disk, choosing the decoder by
// extension: .yaml/.yml, .hjson, otherwise JSON (lenient when repair is set).
func ParseFile(path string, repair bool) (*Assumptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assumptions file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	case ".hjson":
		return parseHJSON(data)
	default:
		if repair {
			return ParseLenient(data)
		}
		return Parse(data)
	}
}
