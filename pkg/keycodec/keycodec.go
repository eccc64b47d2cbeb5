// Package keycodec implements the convention for carrying properties inside a StatsD metric key:
//
//	<metricName>[__<base64(JSON object)>]
//
// The encoded part is split off at the first "__" that is not at the start of the key.
package keycodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

// Delimiter separates the metric name from the encoded properties.
const Delimiter = "__"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// encodings are tried in order. Producers are not consistent about padding or alphabet.
var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// Split separates key into the metric name and the encoded properties. ok is false if the key
// carries no properties, in which case name is the whole key. A delimiter at index 0 does not count.
func Split(key string) (name, encoded string, ok bool) {
	idx := strings.Index(key, Delimiter)
	if idx <= 0 {
		return key, "", false
	}
	return key[:idx], key[idx+len(Delimiter):], true
}

// DecodeProperties decodes the base64 JSON object carried in a metric key. Values which are not
// JSON strings are converted to their string representation.
func DecodeProperties(encoded string) (map[string]string, error) {
	raw, err := decodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("empty properties")
	}
	if !utf8.Valid(raw) {
		return nil, errors.New("properties are not valid UTF-8")
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("properties must be a JSON object, got %s", describe(v))
	}

	props := make(map[string]string, len(obj))
	for k, val := range obj {
		s, err := stringify(val)
		if err != nil {
			return nil, fmt.Errorf("property %q: %v", k, err)
		}
		props[k] = s
	}
	return props, nil
}

// EncodeProperties returns the base64 JSON encoding of props.
func EncodeProperties(props map[string]string) (string, error) {
	b, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// EncodeKey builds a metric key from name and props. A key without properties is just the name.
func EncodeKey(name string, props map[string]string) (string, error) {
	if len(props) == 0 {
		return name, nil
	}
	encoded, err := EncodeProperties(props)
	if err != nil {
		return "", err
	}
	return name + Delimiter + encoded, nil
}

func decodeBase64(encoded string) ([]byte, error) {
	var firstErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(encoded)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("invalid base64: %v", firstErr)
}

func stringify(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func describe(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
