package manifest

import (
	"encoding/json"
	"math"
	"strconv"
)

// Build normalizes raw listing records into manifest entries, preserving the
// listing order. Records without a usable id are skipped; the number skipped
// is returned alongside the entries.
func Build(records []map[string]any) ([]Entry, int) {
	entries := make([]Entry, 0, len(records))
	skipped := 0
	for _, rec := range records {
		id := idString(rec["id"])
		if id == "" {
			skipped++
			continue
		}
		entries = append(entries, Entry{
			ID:           id,
			Name:         optString(rec["name"]),
			URL:          optString(rec["webUrl"]),
			Size:         optInt64(rec["size"]),
			LastModified: optString(rec["lastModifiedDateTime"]),
			CreatedBy:    optString(dig(rec, "createdBy", "user", "displayName")),
		})
	}
	return entries, skipped
}

func dig(rec map[string]any, path ...string) any {
	var cur any = rec
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func optString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func optInt64(v any) *int64 {
	var n int64
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return nil
		}
		n = int64(t)
	case json.Number:
		parsed, err := t.Int64()
		if err != nil {
			return nil
		}
		n = parsed
	case int:
		n = int64(t)
	case int64:
		n = t
	default:
		return nil
	}
	return &n
}
