package vector

import (
	"encoding/json"
	"fmt"
	"strings"
)

// metaIndex maps (normalized field name, normalized value) to the set of
// live item IDs whose top-level meta contains that field with that value
// (spec §3). Only top-level scalar fields (string/number/bool) are
// indexed; nested structures are skipped at index time but remain in the
// stored meta for post-filter verification.
type metaIndex struct {
	postings map[string]map[string]map[string]struct{} // field -> value -> id set
}

func newMetaIndex() *metaIndex {
	return &metaIndex{postings: make(map[string]map[string]map[string]struct{})}
}

func normalizeField(field string) string {
	return strings.ToLower(strings.TrimSpace(field))
}

// scalarValues extracts the indexable (field, normalizedValue) pairs from
// a top-level meta object.
func scalarValues(meta map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(meta))
	for field, raw := range meta {
		v, ok := normalizeScalar(raw)
		if !ok {
			continue
		}
		out[normalizeField(field)] = v
	}
	return out
}

// normalizeScalar renders a JSON scalar (string/number/bool) to a
// canonical string for indexing; nested objects/arrays/null return ok=false.
func normalizeScalar(raw json.RawMessage) (string, bool) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return "s:" + t, true
	case float64:
		return fmt.Sprintf("n:%g", t), true
	case bool:
		return fmt.Sprintf("b:%t", t), true
	default:
		return "", false
	}
}

func (idx *metaIndex) Add(id string, meta map[string]json.RawMessage) {
	for field, value := range scalarValues(meta) {
		values, ok := idx.postings[field]
		if !ok {
			values = make(map[string]map[string]struct{})
			idx.postings[field] = values
		}
		ids, ok := values[value]
		if !ok {
			ids = make(map[string]struct{})
			values[value] = ids
		}
		ids[id] = struct{}{}
	}
}

func (idx *metaIndex) Remove(id string, meta map[string]json.RawMessage) {
	for field, value := range scalarValues(meta) {
		values, ok := idx.postings[field]
		if !ok {
			continue
		}
		ids, ok := values[value]
		if !ok {
			continue
		}
		delete(ids, id)
		if len(ids) == 0 {
			delete(values, value)
		}
		if len(values) == 0 {
			delete(idx.postings, field)
		}
	}
}

// Candidates returns the intersection of posting lists for every
// (field, value) pair in filters, or (nil, false) if any field/value has
// no matches at all (making the overall intersection empty).
func (idx *metaIndex) Candidates(filters map[string]json.RawMessage) (map[string]struct{}, bool) {
	var result map[string]struct{}
	for field, raw := range filters {
		value, ok := normalizeScalar(raw)
		if !ok {
			return nil, false
		}
		values, ok := idx.postings[normalizeField(field)]
		if !ok {
			return nil, false
		}
		ids, ok := values[value]
		if !ok || len(ids) == 0 {
			return nil, false
		}
		if result == nil {
			result = make(map[string]struct{}, len(ids))
			for id := range ids {
				result[id] = struct{}{}
			}
			continue
		}
		for id := range result {
			if _, ok := ids[id]; !ok {
				delete(result, id)
			}
		}
		if len(result) == 0 {
			return nil, false
		}
	}
	return result, true
}
