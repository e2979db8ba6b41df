package eastmoney

import (
	"github.com/PaesslerAG/jsonpath"

	"github.com/aristath/valuescope/internal/domain"
)

// Paths of the record arrays inside each endpoint's payload.
const (
	statementDataPath  = "$.data"
	datacenterDataPath = "$.result.data"
)

// extractRecords pulls the array at path out of payload. ok is false when
// the path is missing or does not hold an array.
func extractRecords(payload any, path string) (domain.Series, bool) {
	v, err := jsonpath.Get(path, payload)
	if err != nil {
		return nil, false
	}
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}

	out := make(domain.Series, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, domain.Record(obj))
	}
	return out, true
}
