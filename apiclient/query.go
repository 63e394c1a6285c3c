package apiclient

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// QueryValues is an ordered collection of query parameters.
// Unlike url.Values, it preserves insertion order, so the encoded
// string is stable and matches the order parameters were added.
//
// A nil value passed to Add marks the parameter as absent and it is
// skipped entirely on encode. This distinguishes "omit the parameter"
// from "empty string value" ("key=").
type QueryValues struct {
	pairs []queryPair
}

type queryPair struct {
	key   string
	value string
}

// NewQueryValues creates an empty ordered query parameter set.
func NewQueryValues() *QueryValues {
	return &QueryValues{}
}

// Add appends a parameter. Nil values are skipped entirely.
// Supported value types: string, bool, all int/uint widths, float32/64,
// fmt.Stringer. Anything else is formatted with %v.
func (q *QueryValues) Add(key string, value any) *QueryValues {
	if value == nil {
		return q
	}
	q.pairs = append(q.pairs, queryPair{key: key, value: stringifyQueryValue(value)})
	return q
}

// Len returns the number of parameters that will be encoded.
func (q *QueryValues) Len() int {
	if q == nil {
		return 0
	}
	return len(q.pairs)
}

// Encode renders the parameters as "?key=value&..." with percent
// encoding applied to keys and values. An empty set encodes to "".
func (q *QueryValues) Encode() string {
	if q == nil || len(q.pairs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('?')
	for i, p := range q.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// QueryFromMap builds a QueryValues from a flat map. Nil values are
// skipped entirely. Keys are sorted so the encoded form is
// deterministic; use NewQueryValues().Add(...) when caller-defined
// order matters.
func QueryFromMap(m map[string]any) *QueryValues {
	q := NewQueryValues()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Add(k, m[k])
	}
	return q
}

func stringifyQueryValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
