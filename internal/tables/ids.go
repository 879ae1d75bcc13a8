// Package tables loads the relevance tables the pair sampler joins: the
// per-query candidate scores and the qrels. Identifiers arrive as strings or
// integers depending on the producer; every id is converted to one canonical
// string at load time and only canonical ids are compared afterwards.
package tables

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeID returns the canonical string form of an identifier. Integers
// and integral floats become base-10 strings; strings lose surrounding
// whitespace and double quotes.
func NormalizeID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return normalizeString(id)
	case []byte:
		return normalizeString(string(id))
	case int:
		return strconv.FormatInt(int64(id), 10), nil
	case int8:
		return strconv.FormatInt(int64(id), 10), nil
	case int16:
		return strconv.FormatInt(int64(id), 10), nil
	case int32:
		return strconv.FormatInt(int64(id), 10), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case uint:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint64:
		return strconv.FormatUint(id, 10), nil
	case float32:
		return normalizeFloat(float64(id))
	case float64:
		return normalizeFloat(id)
	case fmt.Stringer:
		return normalizeString(id.String())
	default:
		return "", fmt.Errorf("unsupported identifier type %T", v)
	}
}

func normalizeString(s string) (string, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return "", fmt.Errorf("empty identifier")
	}
	return s, nil
}

func normalizeFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= 1<<53 {
		return "", fmt.Errorf("identifier %v is not an integral value", f)
	}
	return strconv.FormatInt(int64(f), 10), nil
}
