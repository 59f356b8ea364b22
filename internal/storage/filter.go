package storage

import (
	"fmt"
	"strings"
)

// metadataValue resolves a dotted field path (e.g. "author.name") against
// a document's Metadata map.
func metadataValue(metadata map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = metadata
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// matchesFilter evaluates a single Filter against a document's metadata.
func matchesFilter(doc Document, f Filter) bool {
	value, exists := metadataValue(doc.Metadata, f.Field)

	switch f.Operator {
	case OpExists:
		want, _ := f.Value.(bool)
		return exists == want || (f.Value == nil && exists)
	case OpEqual:
		return exists && compareEqual(value, f.Value)
	case OpNotEqual:
		return !exists || !compareEqual(value, f.Value)
	case OpGreaterThan:
		return exists && compareNumeric(value, f.Value) > 0
	case OpLessThan:
		return exists && compareNumeric(value, f.Value) < 0
	case OpGreaterEq:
		return exists && compareNumeric(value, f.Value) >= 0
	case OpLessEq:
		return exists && compareNumeric(value, f.Value) <= 0
	case OpIn:
		if !exists {
			return false
		}
		options, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, opt := range options {
			if compareEqual(value, opt) {
				return true
			}
		}
		return false
	case OpContains:
		if !exists {
			return false
		}
		switch v := value.(type) {
		case string:
			s, _ := f.Value.(string)
			return strings.Contains(v, s)
		case []any:
			for _, item := range v {
				if compareEqual(item, f.Value) {
					return true
				}
			}
			return false
		default:
			return false
		}
	default:
		return false
	}
}

// matchesAllFilters evaluates filters with AND semantics.
func matchesAllFilters(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !matchesFilter(doc, f) {
			return false
		}
	}
	return true
}

func compareEqual(a, b any) bool {
	return fmt.Sprintf("%v", normalizeNumber(a)) == fmt.Sprintf("%v", normalizeNumber(b))
}

// normalizeNumber collapses float64/int representations so JSON-decoded
// numbers (always float64) compare equal to caller-supplied ints.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return v
	}
}

func compareNumeric(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	return strings.Compare(as, bs)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
