// Package exportfile is a driver that publishes access rules as entries in
// an exports file, one entry per rule. It only supports incremental
// updates.
package exportfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

// Name is the registry name of the driver.
const Name = "exportfile"

const subsystem = "ExportFileDriver"

// Export is a single line of the exports file.
type Export struct {
	Instance    string          `yaml:"instance"`
	AccessTo    string          `yaml:"accessTo"`
	AccessLevel api.AccessLevel `yaml:"accessLevel"`
	RuleID      string          `yaml:"ruleId"`
	Server      string          `yaml:"server,omitempty"`
}

type exportsFile struct {
	Exports []Export `yaml:"exports"`
}

// Driver rewrites the exports file on every allow and deny.
type Driver struct {
	mu   sync.Mutex
	path string
	cfg  api.DriverConfig
}

var _ api.Driver = (*Driver)(nil)

// New creates a driver writing to path. The file is created on first use.
func New(path string, cfg api.DriverConfig) *Driver {
	return &Driver{path: path, cfg: cfg}
}

func (d *Driver) Name() string {
	return Name
}

func (d *Driver) Configuration() api.DriverConfig {
	return d.cfg
}

// UpdateAccess is not supported; callers fall back to AllowAccess and
// DenyAccess.
func (d *Driver) UpdateAccess(ctx context.Context, instance *api.ShareInstance, existing, addRules, deleteRules []api.AccessRule, server *api.ShareServer) (api.UpdateResult, error) {
	return api.NotSupported(), nil
}

// AllowAccess adds an export for the rule, or rewrites the rule's export if
// it already exists. A principal holding rules at both levels gets one
// export per rule.
func (d *Driver) AllowAccess(ctx context.Context, instance *api.ShareInstance, rule api.AccessRule, server *api.ShareServer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	file, err := d.load()
	if err != nil {
		return err
	}

	entry := Export{
		Instance:    instance.ID,
		AccessTo:    rule.AccessTo,
		AccessLevel: rule.AccessLevel,
		RuleID:      rule.ID,
	}
	if server != nil {
		entry.Server = server.Host
	}

	if i := file.find(instance.ID, rule.ID); i >= 0 {
		file.Exports[i] = entry
	} else {
		file.Exports = append(file.Exports, entry)
	}

	logging.Debug(subsystem, "Exporting %s to %s (%s)", instance.ID, rule.AccessTo, rule.AccessLevel)
	return d.save(file)
}

// DenyAccess removes the export of the rule. Exports of other rules for the
// same principal stay. It returns a NotFoundError when the rule has no
// export.
func (d *Driver) DenyAccess(ctx context.Context, instance *api.ShareInstance, rule api.AccessRule, server *api.ShareServer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	file, err := d.load()
	if err != nil {
		return err
	}

	i := file.find(instance.ID, rule.ID)
	if i < 0 {
		return api.NewNotFoundError("export", instance.ID+":"+rule.ID)
	}
	file.Exports = append(file.Exports[:i], file.Exports[i+1:]...)

	logging.Debug(subsystem, "Unexporting %s from %s", instance.ID, rule.AccessTo)
	return d.save(file)
}

// Exports returns the exports of the instance ordered by principal and
// access level.
func (d *Driver) Exports(instanceID string) ([]Export, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	file, err := d.load()
	if err != nil {
		return nil, err
	}

	var out []Export
	for _, e := range file.Exports {
		if e.Instance == instanceID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccessTo != out[j].AccessTo {
			return out[i].AccessTo < out[j].AccessTo
		}
		return out[i].AccessLevel > out[j].AccessLevel
	})
	return out, nil
}

func (f *exportsFile) find(instanceID, ruleID string) int {
	for i, e := range f.Exports {
		if e.Instance == instanceID && e.RuleID == ruleID {
			return i
		}
	}
	return -1
}

func (d *Driver) load() (*exportsFile, error) {
	file := &exportsFile{}

	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return file, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read exports file %s: %w", d.path, err)
	}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("failed to parse exports file %s: %w", d.path, err)
	}
	return file, nil
}

// save writes the file through a temporary file so readers never see a
// partial exports table.
func (d *Driver) save(file *exportsFile) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode exports: %w", err)
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create exports directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".exports-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temporary exports file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write exports: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write exports: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("failed to replace exports file: %w", err)
	}
	return nil
}
