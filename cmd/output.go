package cmd

import (
	"github.com/spf13/cobra"

	"github.com/giantswarm/sharekeeper/internal/formatting"
)

var (
	outputFormat string
	showKeys     bool
)

// addOutputFlags registers --output on a listing command.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
}

func newFormatter(cmd *cobra.Command) (formatting.Formatter, error) {
	format, err := formatting.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return formatting.New(formatting.Options{
		Format:   format,
		Writer:   cmd.OutOrStdout(),
		ShowKeys: showKeys,
	}), nil
}
