package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantFields []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:       "unknown backend",
			mutate:     func(c *Config) { c.Store.Backend = "etcd" },
			wantFields: []string{"backend"},
		},
		{
			name:       "sqlite without path",
			mutate:     func(c *Config) { c.Store.Path = "" },
			wantFields: []string{"path"},
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Store.Backend = StoreBackendPostgres
			},
			wantFields: []string{"dsn"},
		},
		{
			name:       "missing driver",
			mutate:     func(c *Config) { c.Driver.Name = "" },
			wantFields: []string{"name"},
		},
		{
			name: "bad reconciler settings",
			mutate: func(c *Config) {
				c.Reconciler.MaxBackoff = c.Reconciler.InitialBackoff / 2
				c.Reconciler.MaxConvergencePasses = 0
				c.Reconciler.ResyncInterval = -1
			},
			wantFields: []string{"maxBackoff", "resyncInterval", "maxConvergencePasses"},
		},
		{
			name:       "unknown log level",
			mutate:     func(c *Config) { c.Logging.Level = "loud" },
			wantFields: []string{"level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg)

			errs := cfg.Validate("config.yaml")

			var fields []string
			for _, e := range errs.Errors {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestConfigurationErrorCollection(t *testing.T) {
	var errs ConfigurationErrorCollection
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "no configuration errors", errs.Error())

	errs.Add(ConfigurationError{Category: "store", Field: "dsn", Message: "is required", FilePath: "/etc/config.yaml"})
	assert.Equal(t, "[store] dsn: is required", errs.Error())

	errs.Add(ConfigurationError{Category: "driver", Message: "broken", Suggestions: []string{"fix it"}})
	assert.Equal(t, 2, errs.Count())
	assert.Contains(t, errs.Error(), "2 configuration errors")

	report := errs.GetDetailedReport()
	assert.Contains(t, report, "/etc/config.yaml:\n  store.dsn: is required")
	assert.Contains(t, report, "hint: fix it")

	var single ConfigurationError
	require.ErrorAs(t, errs, &single)
	assert.Equal(t, "store", single.Category)
}
