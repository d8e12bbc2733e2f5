package config

import (
	"fmt"
	"strings"
)

// ConfigurationError describes one problem found in config.yaml.
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`
	Category    string   `json:"category"`  // store, driver, reconciler or logging
	Field       string   `json:"field"`     // key within the category, if any
	ErrorType   string   `json:"errorType"` // parse, validation or io
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

func (ce ConfigurationError) Error() string {
	if ce.Field == "" {
		return fmt.Sprintf("[%s] %s", ce.Category, ce.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", ce.Category, ce.Field, ce.Message)
}

// key returns the dotted config key, e.g. "store.dsn".
func (ce ConfigurationError) key() string {
	if ce.Field == "" {
		return ce.Category
	}
	return ce.Category + "." + ce.Field
}

// ConfigurationErrorCollection is returned by LoadConfig when validation
// finds problems. It reports all of them at once.
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

func (cec ConfigurationErrorCollection) Error() string {
	switch n := len(cec.Errors); n {
	case 0:
		return "no configuration errors"
	case 1:
		return cec.Errors[0].Error()
	default:
		return fmt.Sprintf("%d configuration errors: %s (and %d more)", n, cec.Errors[0].Error(), n-1)
	}
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (cec ConfigurationErrorCollection) Unwrap() []error {
	errs := make([]error, 0, len(cec.Errors))
	for _, e := range cec.Errors {
		errs = append(errs, e)
	}
	return errs
}

func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

func (cec *ConfigurationErrorCollection) Count() int {
	return len(cec.Errors)
}

func (cec *ConfigurationErrorCollection) Add(err ConfigurationError) {
	cec.Errors = append(cec.Errors, err)
}

// GetErrorsByCategory returns the errors of one config section.
func (cec *ConfigurationErrorCollection) GetErrorsByCategory(category string) []ConfigurationError {
	var filtered []ConfigurationError
	for _, err := range cec.Errors {
		if err.Category == category {
			filtered = append(filtered, err)
		}
	}
	return filtered
}

// GetDetailedReport renders every error with its file, key and
// suggestions, grouped by file.
func (cec *ConfigurationErrorCollection) GetDetailedReport() string {
	if len(cec.Errors) == 0 {
		return "No configuration errors to report\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Invalid configuration (%d errors)\n", len(cec.Errors))

	lastFile := "\x00"
	for _, err := range cec.Errors {
		if err.FilePath != lastFile {
			lastFile = err.FilePath
			file := err.FilePath
			if file == "" {
				file = "<defaults>"
			}
			fmt.Fprintf(&b, "\n%s:\n", file)
		}

		fmt.Fprintf(&b, "  %s: %s", err.key(), err.Message)
		if err.ErrorType != "" {
			fmt.Fprintf(&b, " (%s)", err.ErrorType)
		}
		b.WriteString("\n")
		for _, s := range err.Suggestions {
			fmt.Fprintf(&b, "    hint: %s\n", s)
		}
	}
	return b.String()
}
