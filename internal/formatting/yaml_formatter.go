package formatting

import (
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/sharekeeper/internal/api"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

func (f *YAMLFormatter) FormatInstances(instances []api.ShareInstance) error {
	if instances == nil {
		instances = []api.ShareInstance{}
	}
	return f.encode(instances)
}

func (f *YAMLFormatter) FormatRules(rules []api.AccessRule) error {
	views := make([]api.AccessRule, 0, len(rules))
	for _, r := range rules {
		views = append(views, ruleView(r, f.options.ShowKeys))
	}
	return f.encode(views)
}

func (f *YAMLFormatter) encode(v any) error {
	enc := yaml.NewEncoder(f.options.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
