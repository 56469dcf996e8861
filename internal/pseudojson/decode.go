package pseudojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Method records which stage of the fallback chain produced a decoded object.
type Method string

// Decode methods, in the order they are attempted.
const (
	MethodStrict    Method = "strict"
	MethodDialect   Method = "dialect"
	MethodNormalize Method = "normalize"
	MethodScan      Method = "scan"
)

// ErrUndecodable is returned when no stage of the chain could recover any keys.
var ErrUndecodable = errors.New("fragment could not be decoded")

// Decode turns one object literal into a map, trying strict JSON, the dialect
// parser, regex normalization and finally flat colon scanning. Scanned values
// are strings and nested objects are absent from scan results.
func Decode(fragment string) (map[string]any, Method, error) {
	if obj, err := decodeStrict(fragment); err == nil {
		return obj, MethodStrict, nil
	}

	obj, parseErr := ParseObject(fragment)
	if parseErr == nil {
		return obj, MethodDialect, nil
	}

	if normalized, err := Normalize(fragment); err == nil {
		if obj, err := decodeStrict(normalized); err == nil {
			return obj, MethodNormalize, nil
		}
	}

	if flat := ScanFlat(fragment); len(flat) > 0 {
		obj := make(map[string]any, len(flat))
		for k, v := range flat {
			obj[k] = v
		}
		return obj, MethodScan, nil
	}

	return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, parseErr)
}

func decodeStrict(text string) (map[string]any, error) {
	if !json.Valid([]byte(text)) {
		return nil, ErrInvalidJSON
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not an object")
	}
	return obj, nil
}
