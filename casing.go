package ocppj

import (
	"strings"
	"unicode"

	gojson "github.com/goccy/go-json"
)

// The wire uses lowerCamelCase payload keys while handler-facing payloads
// use snake_case. The walkers below convert dictionary keys symmetrically
// on decode and encode; values are never touched.

// CamelToSnakeCase walks a decoded JSON value and converts every object
// key from lowerCamelCase to snake_case.
func CamelToSnakeCase(value interface{}) interface{} {
	return convertKeys(value, camelToSnake)
}

// SnakeToCamelCase walks a decoded JSON value and converts every object
// key from snake_case to lowerCamelCase.
func SnakeToCamelCase(value interface{}) interface{} {
	return convertKeys(value, snakeToCamel)
}

// RemoveNulls strips object members whose value is null so that optional
// omitted fields never appear as null on the wire. Arrays and nested
// objects are walked; null array elements are kept as-is.
func RemoveNulls(value interface{}) interface{} {
	switch actual := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(actual))
		for key, item := range actual {
			if item == nil {
				continue
			}
			result[key] = RemoveNulls(item)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(actual))
		for i, item := range actual {
			result[i] = RemoveNulls(item)
		}
		return result
	default:
		return value
	}
}

// CamelToSnakeRaw converts all object keys of a raw JSON document from
// lowerCamelCase to snake_case.
func CamelToSnakeRaw(data []byte) ([]byte, error) {
	return transformRaw(data, CamelToSnakeCase)
}

// SnakeToCamelRaw converts all object keys of a raw JSON document from
// snake_case to lowerCamelCase and strips null members on the way, so the
// result is ready for the wire.
func SnakeToCamelRaw(data []byte) ([]byte, error) {
	return transformRaw(data, func(value interface{}) interface{} {
		return SnakeToCamelCase(RemoveNulls(value))
	})
}

func transformRaw(data []byte, transform func(interface{}) interface{}) ([]byte, error) {
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	var value interface{}
	if err := gojson.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return gojson.Marshal(transform(value))
}

func convertKeys(value interface{}, convert func(string) string) interface{} {
	switch actual := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(actual))
		for key, item := range actual {
			result[convert(key)] = convertKeys(item, convert)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(actual))
		for i, item := range actual {
			result[i] = convertKeys(item, convert)
		}
		return result
	default:
		return value
	}
}

func camelToSnake(key string) string {
	var builder strings.Builder
	builder.Grow(len(key) + 4)
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				builder.WriteByte('_')
			}
			builder.WriteRune(unicode.ToLower(r))
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

func snakeToCamel(key string) string {
	parts := strings.Split(key, "_")
	var builder strings.Builder
	builder.Grow(len(key))
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 {
			builder.WriteString(part)
			continue
		}
		builder.WriteString(strings.ToUpper(part[:1]))
		builder.WriteString(part[1:])
	}
	return builder.String()
}
