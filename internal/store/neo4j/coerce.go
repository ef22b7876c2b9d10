package neo4j

import (
	"math/big"
	"regexp"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// isoTimestamp matches date, time, optional fractional seconds, and a
// timezone designator (Z or a numeric offset). Detection is a
// heuristic: a matching string is only converted when it also parses to
// a valid instant, so string data that merely looks like a date is left
// alone.
var isoTimestamp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})$`)

// toProps serialises a canonical property bag into the store's
// representation: timestamps become ISO-8601 strings, everything else
// passes through unchanged.
func toProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for key, value := range props {
		out[key] = toValue(value)
	}
	return out
}

func toValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(time.RFC3339Nano)
	}
	return value
}

// fromProps decodes a store property bag into the canonical
// representation. A nil input stays nil so callers can tell "no record"
// from "record with no fields". The transform is idempotent: applying
// it to already-canonical data changes nothing.
func fromProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for key, value := range props {
		out[key] = fromValue(value)
	}
	return out
}

func fromValue(value any) any {
	switch v := value.(type) {
	case string:
		if isoTimestamp.MatchString(v) {
			if parsed, err := time.Parse(time.RFC3339, v); err == nil {
				return parsed
			}
		}
		return v
	case *big.Int:
		// Never truncate: integers beyond int64 decode to their exact
		// decimal representation.
		if v.IsInt64() {
			return v.Int64()
		}
		return v.String()
	case dbtype.LocalDateTime:
		return v.Time()
	case dbtype.Date:
		return v.Time()
	case dbtype.Node:
		return fromProps(v.Props)
	case map[string]any:
		return fromProps(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = fromValue(item)
		}
		return out
	}
	return value
}
