package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON fixes common defects in hand-edited or truncated JSON:
// unquoted keys, single quotes, trailing commas, unclosed arrays.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Hjson and returns standard JSON.
func ParseHJSON(data string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(data), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(out), nil
}

// SmartParse decodes input into out, trying in order:
// 1. Standard JSON
// 2. JSON repair
// 3. Hjson
//
// It returns the JSON text that finally decoded.
func SmartParse(input string, out interface{}) (string, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "\ufeff")
	if input == "" {
		return "", fmt.Errorf("SMART_PARSE_FAILED: empty input")
	}

	// Try 1: Standard JSON
	if err := json.Unmarshal([]byte(input), out); err == nil {
		return input, nil
	}

	// Try 2: JSON Repair
	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), out); err == nil {
			return repaired, nil
		}
	}

	// Try 3: Hjson
	if converted, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(converted), out); err == nil {
			return converted, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}
