package formatting

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/giantswarm/sharekeeper/internal/api"
)

// MaskKey hides all but the first four characters of an access key.
// Keys of four characters or fewer are hidden entirely.
func MaskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 4:
		return strings.Repeat("*", len(key))
	default:
		return key[:4] + strings.Repeat("*", len(key)-4)
	}
}

// ColorRulesStatus colors an access-rules status for terminal output.
func ColorRulesStatus(s api.AccessRulesStatus) string {
	switch s {
	case api.AccessRulesActive:
		return text.FgGreen.Sprint(s)
	case api.AccessRulesError:
		return text.FgRed.Sprint(s)
	case api.AccessRulesOutOfSync:
		return text.FgYellow.Sprint(s)
	default:
		return string(s)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
