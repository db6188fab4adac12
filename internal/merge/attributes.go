package merge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/eletricells/vantdge/internal/model"
)

// normalizeAttributes puts candidate attributes into the form merges
// operate on: nil and blank values dropped, scalar lists as sorted
// deduplicated []string, lists holding objects as []any sorted by
// canonical JSON, nested objects as map[string]any, keys in listKeys
// always lists. Returns nil for no attributes.
func normalizeAttributes(in map[string]any, listKeys map[string]bool) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		v = normalizeValue(v)
		if v == nil {
			continue
		}
		if listKeys[k] && valueRank(v) == rankScalar {
			v = model.SortedUnion([]string{cast.ToString(v)})
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeValue returns nil for values that carry nothing.
func normalizeValue(v any) any {
	if m, ok := asMap(v); ok {
		return normalizeMap(m)
	}
	if items, ok := asItems(v); ok {
		return normalizeList(items)
	}
	return normalizeScalar(v)
}

func normalizeMap(in map[string]any) any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if v = normalizeValue(v); v != nil {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeList keeps a list of scalars as []string. Any structured item
// turns the whole list into an object list.
func normalizeList(items []any) any {
	var (
		vals       []any
		structured bool
	)
	for _, item := range items {
		item = normalizeValue(item)
		if item == nil {
			continue
		}
		if valueRank(item) != rankScalar {
			structured = true
		}
		vals = append(vals, item)
	}
	if !structured {
		strs := make([]string, 0, len(vals))
		for _, v := range vals {
			strs = append(strs, cast.ToString(v))
		}
		if list := model.SortedUnion(strs); list != nil {
			return list
		}
		return nil
	}
	return unionObjects(vals)
}

// unionObjects deduplicates items by canonical JSON and sorts them by it.
func unionObjects(sets ...[]any) any {
	seen := make(map[string]any)
	for _, set := range sets {
		for _, item := range set {
			seen[canonicalKey(item)] = item
		}
	}
	if len(seen) == 0 {
		return nil
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out
}

// canonicalKey is the JSON form of v. encoding/json sorts map keys, so
// equal content yields equal keys.
func canonicalKey(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any, map[string]string:
		out, err := cast.ToStringMapE(m)
		return out, err == nil
	default:
		return nil, false
	}
}

func asItems(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

func normalizeScalar(v any) any {
	switch s := v.(type) {
	case nil:
		return nil
	case string:
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		return s
	case int:
		return float64(s)
	case int32:
		return float64(s)
	case int64:
		return float64(s)
	case float32:
		return float64(s)
	default:
		return v
	}
}

const (
	rankScalar = iota
	rankMap
	rankList
)

func valueRank(v any) int {
	switch v.(type) {
	case []string, []any:
		return rankList
	case map[string]any:
		return rankMap
	default:
		return rankScalar
	}
}

// mergeAttributes combines two normalised attribute maps. A null never
// replaces a value. Lists union and nested objects merge key by key. Two
// different scalars resolve to the one that orders first, so the outcome
// ignores which side is "existing". Under one key a list outranks an
// object, which outranks a scalar; the lower-ranked value is dropped.
func mergeAttributes(a, b map[string]any) map[string]any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		av, ok := out[k]
		if !ok {
			out[k] = bv
			continue
		}
		out[k] = mergeValue(k, av, bv)
	}
	return out
}

func mergeValue(key string, a, b any) any {
	ar, br := valueRank(a), valueRank(b)
	if ar != br {
		zap.L().Debug("merge: attribute shapes differ, keeping richer value",
			zap.String("attribute", key),
			zap.Int("rank_a", ar),
			zap.Int("rank_b", br),
		)
		if ar > br {
			return a
		}
		return b
	}
	switch ar {
	case rankList:
		return mergeLists(a, b)
	case rankMap:
		return mergeAttributes(a.(map[string]any), b.(map[string]any))
	}
	if scalarLess(b, a) {
		return b
	}
	return a
}

func mergeLists(a, b any) any {
	al, aStrings := a.([]string)
	bl, bStrings := b.([]string)
	if aStrings && bStrings {
		return model.SortedUnion(al, bl)
	}
	ai, _ := asItems(a)
	bi, _ := asItems(b)
	return unionObjects(ai, bi)
}

// scalarLess orders scalars by string form, then by type name.
func scalarLess(a, b any) bool {
	as, bs := scalarString(a), scalarString(b)
	if as != bs {
		return as < bs
	}
	return fmt.Sprintf("%T", a) < fmt.Sprintf("%T", b)
}

func scalarString(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return canonicalKey(v)
}
