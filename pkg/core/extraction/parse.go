package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/shopspring/decimal"
)

// textKeys are JSON keys whose values stay strings even when they look numeric
// (zip codes, months, department names).
var textKeys = map[string]bool{
	"month": true, "department": true, "source_document": true, "source_location": true,
	"facility_name": true, "address": true, "city": true, "state": true, "zip_code": true,
	"facility_type": true, "operator_name": true, "payer_type": true, "care_level": true,
	"room_type": true, "effective_date": true,
}

// RepairJSON attempts to fix common JSON errors from LLM outputs
// (unquoted keys, single quotes, trailing commas, markdown fences, unclosed brackets).
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// SmartParse tries multiple parsing strategies and returns the decoded document.
// Order of attempts:
// 1. Standard JSON parse
// 2. JSON repair
// 3. Hjson parse (most lenient)
func SmartParse(input string) (any, error) {
	input = stripFences(input)

	var out any
	if err := json.Unmarshal([]byte(input), &out); err == nil {
		return out, nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), &out); err == nil {
			return out, nil
		}
	}

	if err := hjson.Unmarshal([]byte(input), &out); err == nil {
		return out, nil
	}

	return nil, fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}

// Decode parses an LLM response leniently, unwraps {value, confidence} wrappers,
// coerces formatted numbers ("$1,234", "(500)", "92%") and decodes into out.
// When the response nests the payload under key, that sub-object is used.
func Decode(input string, key string, out any) error {
	doc, err := SmartParse(input)
	if err != nil {
		return err
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("JSON_STRUCTURAL_ERROR: expected an object, got %T", doc)
	}
	if inner, ok := obj[key]; ok && key != "" {
		if _, isObj := inner.(map[string]any); isObj {
			doc = inner
		}
	}

	clean := Normalize(doc, "")
	data, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("JSON_STRUCTURAL_ERROR: %v", err)
	}
	return nil
}

// Normalize walks a decoded JSON document, replacing {value, confidence} objects with their
// bare value. For non-text keys numeric strings become numbers and any other string or bool
// becomes null, so one malformed cell never fails the whole category.
func Normalize(v any, key string) any {
	switch t := v.(type) {
	case map[string]any:
		if inner, ok := unwrapValue(t); ok {
			return Normalize(inner, key)
		}
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Normalize(child, k)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Normalize(child, key)
		}
		return out
	case string:
		if textKeys[key] {
			return t
		}
		if n, ok := ParseAmount(t); ok {
			return n
		}
		// "see note 4" and the like in a numeric field
		return nil
	case float64:
		if textKeys[key] {
			return trimFloat(t)
		}
		return t
	case bool:
		return nil
	default:
		return v
	}
}

// unwrapValue recognizes the {value, confidence[, source]} shape.
func unwrapValue(m map[string]any) (any, bool) {
	val, hasValue := m["value"]
	if !hasValue {
		return nil, false
	}
	for k := range m {
		switch k {
		case "value", "confidence", "source", "source_location", "reasoning":
		default:
			return nil, false
		}
	}
	return val, true
}

// ParseAmount converts a formatted number string into a float. Accepts currency symbols,
// thousands separators, trailing percent signs and accounting parentheses for negatives.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = strings.TrimPrefix(s, "-")
	}
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if neg {
		d = d.Neg()
	}
	return d.InexactFloat64(), true
}

func trimFloat(f float64) string {
	return decimal.NewFromFloat(f).String()
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
