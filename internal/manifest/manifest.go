// Package manifest reads desired access-rule state from YAML files.
//
// Each share instance has one file at <root>/shares/<instance>.yaml:
//
//	rules:
//	  - accessTo: 10.0.0.0/24
//	    accessLevel: rw
//	  - accessTo: backup.example.com
//	    accessLevel: ro
//
// The instance id is the file name without extension. A principal may
// appear once per access level.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/giantswarm/sharekeeper/internal/api"
)

// SharesDir is the directory below the manifest root holding one file per
// share instance.
const SharesDir = "shares"

// Rule is a desired access rule.
type Rule struct {
	AccessTo    string          `yaml:"accessTo"`
	AccessLevel api.AccessLevel `yaml:"accessLevel,omitempty"`
}

func (r Rule) key() string {
	return r.AccessTo + "|" + string(r.AccessLevel)
}

// Manifest is the desired state of one share instance.
type Manifest struct {
	InstanceID string `yaml:"-"`
	Rules      []Rule `yaml:"rules"`
}

// Path returns the manifest file of an instance.
func Path(root, instanceID string) string {
	return filepath.Join(root, SharesDir, instanceID+".yaml")
}

// InstanceID returns the instance a manifest file belongs to, or false if
// the path is not a manifest file.
func InstanceID(path string) (string, bool) {
	if filepath.Base(filepath.Dir(path)) != SharesDir {
		return "", false
	}
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".yaml" && ext != ".yml" {
		return "", false
	}
	id := strings.TrimSuffix(name, filepath.Ext(name))
	if id == "" || strings.HasPrefix(id, ".") {
		return "", false
	}
	return id, true
}

// Load reads the manifest of an instance. A missing file yields an
// api.NotFoundError.
func Load(root, instanceID string) (*Manifest, error) {
	path := Path(root, instanceID)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, api.NewNotFoundError("manifest", instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.InstanceID = instanceID
	return m, nil
}

// Parse decodes and validates manifest YAML. Unknown fields are rejected.
// A missing access level defaults to rw.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, api.NewInvalidError("failed to parse: %v", err)
	}

	seen := sets.New[string]()
	for i := range m.Rules {
		r := &m.Rules[i]
		r.AccessTo = strings.TrimSpace(r.AccessTo)
		if r.AccessTo == "" {
			return nil, api.NewInvalidError("rule %d: accessTo is required", i+1)
		}
		if r.AccessLevel == "" {
			r.AccessLevel = api.AccessLevelRW
		}
		if !r.AccessLevel.Valid() {
			return nil, api.NewInvalidError("rule %d: unknown access level %q", i+1, r.AccessLevel)
		}
		if seen.Has(r.key()) {
			return nil, api.NewInvalidError("rule %d: duplicate rule for %s (%s)", i+1, r.AccessTo, r.AccessLevel)
		}
		seen.Insert(r.key())
	}
	return m, nil
}

// List returns the ids of all instances with a manifest under root.
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, SharesDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := InstanceID(filepath.Join(root, SharesDir, e.Name())); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Diff compares desired rules with the stored rules of an instance. It
// returns the desired rules that have no stored counterpart and the stored
// rules that are not desired. Rules match on principal and access level;
// duplicate stored rules beyond the first are returned for removal.
func Diff(desired []Rule, stored []api.AccessRule) (create []Rule, remove []api.AccessRule) {
	want := sets.New[string]()
	for _, r := range desired {
		want.Insert(r.key())
	}

	have := sets.New[string]()
	for _, s := range stored {
		k := Rule{AccessTo: s.AccessTo, AccessLevel: s.AccessLevel}.key()
		if !want.Has(k) || have.Has(k) {
			remove = append(remove, s)
			continue
		}
		have.Insert(k)
	}

	for _, r := range desired {
		if !have.Has(r.key()) {
			create = append(create, r)
		}
	}
	return create, remove
}
