package access

import (
	"reflect"
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/giantswarm/sharekeeper/internal/api"
)

// validateAccessKeys checks a driver's access-key payload against the rules
// the driver was asked to process. An empty payload yields no keys. A
// non-empty payload must map known rule ids to string keys.
func validateAccessKeys(payload any, processed []api.AccessRule) (map[string]string, error) {
	if isEmptyPayload(payload) {
		return nil, nil
	}

	known := sets.New(api.RuleIDs(processed)...)

	switch p := payload.(type) {
	case map[string]string:
		keys := make(map[string]string, len(p))
		for _, id := range sortedKeys(p) {
			if !known.Has(id) {
				return nil, api.NewInvalidError("access key returned for unknown rule %q", id)
			}
			keys[id] = p[id]
		}
		return keys, nil

	case map[string]any:
		keys := make(map[string]string, len(p))
		for _, id := range sortedKeys(p) {
			if !known.Has(id) {
				return nil, api.NewInvalidError("access key returned for unknown rule %q", id)
			}
			key, ok := p[id].(string)
			if !ok {
				return nil, api.NewInvalidError("access key for rule %q must be a string, got %T", id, p[id])
			}
			keys[id] = key
		}
		return keys, nil

	default:
		return nil, api.NewInvalidError("access keys must map rule ids to keys, got %T", payload)
	}
}

// isEmptyPayload reports whether a payload carries nothing: nil, or a zero
// value or empty container of any type.
func isEmptyPayload(payload any) bool {
	if payload == nil {
		return true
	}
	v := reflect.ValueOf(payload)
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
