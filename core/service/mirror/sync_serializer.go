package mirror

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"mirror_sync/core/domain"
)

// =============================================================================
// Serializer - entity row -> flat replica document
// =============================================================================

// FreshnessField carries the push timestamp on every document. It is metadata,
// not entity state, and is excluded when comparing documents for equality.
const FreshnessField = "sync_updated_at"

// Serializer flattens an entity into the document written to the replica.
// Values are restricted to string, number, bool and nil; timestamps become
// RFC 3339 strings; array fields become <field>_json + <field>_count. The
// output is deterministic for unchanged input, so pushes are idempotent.
type Serializer struct {
	now func() time.Time
}

func NewSerializer() *Serializer {
	return &Serializer{now: time.Now}
}

// Serialize builds the replica document for e. Unsupported field types are a
// permanent failure: retrying cannot fix a field the codec cannot represent.
func (s *Serializer) Serialize(e domain.Syncable) (map[string]any, error) {
	fields := e.Fields()
	doc := make(map[string]any, len(fields)+1)

	for name, value := range fields {
		flat, err := flattenValue(value)
		if err != nil {
			return nil, Permanent(fmt.Errorf("serialize %s.%s: %w", e.EntityType(), name, err))
		}

		if arr, ok := flat.(cleanedArray); ok {
			encoded, err := json.Marshal([]string(arr))
			if err != nil {
				return nil, Permanent(fmt.Errorf("serialize %s.%s: %w", e.EntityType(), name, err))
			}
			doc[name+"_json"] = string(encoded)
			doc[name+"_count"] = len(arr)
			continue
		}

		doc[name] = flat
	}

	doc[FreshnessField] = s.now().UTC().Format(time.RFC3339)
	return doc, nil
}

// cleanedArray distinguishes array fields from scalars after flattening.
type cleanedArray []string

func flattenValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return v.UTC().Format(time.RFC3339), nil
	case *string:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case *float64:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case *int64:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case []string:
		return cleanArrayStrings(v), nil
	case []any:
		return cleanArray(v), nil
	default:
		return nil, fmt.Errorf("unsupported field type %T", value)
	}
}

// cleanArray normalizes a raw array field: nulls, empty strings, the literal
// "null" and non-coercible values are dropped, numbers are coerced to strings,
// duplicates are removed and order is preserved.
func cleanArray(values []any) cleanedArray {
	out := make(cleanedArray, 0, len(values))
	seen := make(map[string]struct{}, len(values))

	for _, v := range values {
		var s string
		switch t := v.(type) {
		case nil:
			continue
		case string:
			s = t
		case int:
			s = strconv.Itoa(t)
		case int64:
			s = strconv.FormatInt(t, 10)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			continue
		}

		if s == "" || s == "null" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}

func cleanArrayStrings(values []string) cleanedArray {
	raw := make([]any, len(values))
	for i, v := range values {
		raw[i] = v
	}
	return cleanArray(raw)
}

// DocumentsEqual compares two replica documents ignoring the freshness field.
func DocumentsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		if k == FreshnessField {
			continue
		}
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}
