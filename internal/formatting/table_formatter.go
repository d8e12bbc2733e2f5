package formatting

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/giantswarm/sharekeeper/internal/api"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// FormatInstances renders one row per share instance.
func (f *TableFormatter) FormatInstances(instances []api.ShareInstance) error {
	if len(instances) == 0 {
		return emptyMessage(f.options.Writer, "share instances")
	}

	t := f.createTable()
	t.AppendHeader(header("ID", "SHARE", "SERVER", "STATUS", "ACCESS RULES", "UPDATED"))
	for _, inst := range instances {
		t.AppendRow(table.Row{
			inst.ID,
			orDash(inst.ShareID),
			orDash(inst.ShareServerID),
			string(inst.Status),
			ColorRulesStatus(inst.AccessRulesStatus),
			formatTime(inst.UpdatedAt),
		})
	}
	t.Render()
	return nil
}

// FormatRules renders one row per access rule.
func (f *TableFormatter) FormatRules(rules []api.AccessRule) error {
	if len(rules) == 0 {
		return emptyMessage(f.options.Writer, "access rules")
	}

	t := f.createTable()
	t.AppendHeader(header("ID", "ACCESS TO", "LEVEL", "KEY", "CREATED"))
	for _, r := range rules {
		v := ruleView(r, f.options.ShowKeys)
		t.AppendRow(table.Row{
			v.ID,
			v.AccessTo,
			string(v.AccessLevel),
			orDash(v.AccessKey),
			formatTime(v.CreatedAt),
		})
	}
	t.Render()
	return nil
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Writer)
	t.SetStyle(table.StyleRounded)
	return t
}

func header(names ...string) table.Row {
	row := make(table.Row, 0, len(names))
	for _, n := range names {
		row = append(row, text.FgHiCyan.Sprint(n))
	}
	return row
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
