// Package formatting renders share instances and access rules for the CLI.
//
// Table output is meant for people; JSON and YAML output carry the same
// records in a stable shape for scripts.
package formatting

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/giantswarm/sharekeeper/internal/api"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat converts a --output flag value into an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", api.NewInvalidError("unknown output format %q (want table, json or yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Writer io.Writer

	// ShowKeys prints access keys in full instead of masking them.
	ShowKeys bool
}

// Formatter renders store records.
type Formatter interface {
	FormatInstances(instances []api.ShareInstance) error
	FormatRules(rules []api.AccessRule) error
}

// New creates the formatter for options.Format. Output goes to stdout
// unless options.Writer is set.
func New(options Options) Formatter {
	if options.Writer == nil {
		options.Writer = os.Stdout
	}

	switch options.Format {
	case FormatJSON:
		return &JSONFormatter{options: options}
	case FormatYAML:
		return &YAMLFormatter{options: options}
	default:
		return &TableFormatter{options: options}
	}
}

// ruleView is the serialized shape of a rule. The key is masked unless
// ShowKeys is set.
func ruleView(r api.AccessRule, showKeys bool) api.AccessRule {
	if !showKeys {
		r.AccessKey = MaskKey(r.AccessKey)
	}
	return r
}

func emptyMessage(w io.Writer, what string) error {
	_, err := fmt.Fprintf(w, "No %s found\n", what)
	return err
}
