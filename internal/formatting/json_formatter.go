package formatting

import (
	"encoding/json"

	"github.com/giantswarm/sharekeeper/internal/api"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

func (f *JSONFormatter) FormatInstances(instances []api.ShareInstance) error {
	if instances == nil {
		instances = []api.ShareInstance{}
	}
	return f.encode(instances)
}

func (f *JSONFormatter) FormatRules(rules []api.AccessRule) error {
	views := make([]api.AccessRule, 0, len(rules))
	for _, r := range rules {
		views = append(views, ruleView(r, f.options.ShowKeys))
	}
	return f.encode(views)
}

func (f *JSONFormatter) encode(v any) error {
	enc := json.NewEncoder(f.options.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
