package api

import "time"

// AccessLevel is the level of access a rule grants.
type AccessLevel string

const (
	// AccessLevelRW grants read-write access.
	AccessLevelRW AccessLevel = "rw"

	// AccessLevelRO grants read-only access.
	AccessLevelRO AccessLevel = "ro"
)

// Valid reports whether the level is one of the known access levels.
func (l AccessLevel) Valid() bool {
	return l == AccessLevelRW || l == AccessLevelRO
}

// InstanceStatus is the operational state of a share instance.
type InstanceStatus string

const (
	StatusAvailable InstanceStatus = "available"
	StatusCreating  InstanceStatus = "creating"
	StatusMigrating InstanceStatus = "migrating"
	StatusError     InstanceStatus = "error"
	StatusDeleting  InstanceStatus = "deleting"
)

// AccessRulesStatus summarises whether the rules enforced by the backend
// match the rules recorded for a share instance.
type AccessRulesStatus string

const (
	// AccessRulesActive means the last reconciliation of the full rule set
	// succeeded.
	AccessRulesActive AccessRulesStatus = "active"

	// AccessRulesError means the last driver call failed; the rules enforced
	// by the backend are unknown.
	AccessRulesError AccessRulesStatus = "error"

	// AccessRulesOutOfSync is set from outside the engine (for example after
	// a migration) and cleared by the next successful reconciliation.
	AccessRulesOutOfSync AccessRulesStatus = "out_of_sync"
)

// Valid reports whether the status is one of the known values.
func (s AccessRulesStatus) Valid() bool {
	switch s {
	case AccessRulesActive, AccessRulesError, AccessRulesOutOfSync:
		return true
	}
	return false
}

// AccessRule grants a principal access to a share instance.
type AccessRule struct {
	// ID uniquely identifies the rule.
	ID string `json:"id" yaml:"id"`

	// InstanceID is the share instance the rule belongs to.
	InstanceID string `json:"instanceId" yaml:"instanceId"`

	// AccessTo identifies the principal: a host, IP/CIDR, user or
	// certificate subject.
	AccessTo string `json:"accessTo" yaml:"accessTo"`

	// AccessLevel is read-write or read-only.
	AccessLevel AccessLevel `json:"accessLevel" yaml:"accessLevel"`

	// AccessKey is a secret issued by the driver for this principal.
	// Empty until the driver supplies one.
	AccessKey string `json:"accessKey,omitempty" yaml:"accessKey,omitempty"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// HasAccessKey reports whether the driver has issued a key for the rule.
func (r AccessRule) HasAccessKey() bool {
	return r.AccessKey != ""
}

// ShareInstance is the entity access rules apply to.
type ShareInstance struct {
	ID string `json:"id" yaml:"id"`

	// ShareID is the logical share this instance is a replica/copy of.
	ShareID string `json:"shareId,omitempty" yaml:"shareId,omitempty"`

	// ShareServerID references the share server hosting the instance, if any.
	ShareServerID string `json:"shareServerId,omitempty" yaml:"shareServerId,omitempty"`

	Status            InstanceStatus    `json:"status" yaml:"status"`
	AccessRulesStatus AccessRulesStatus `json:"accessRulesStatus" yaml:"accessRulesStatus"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// IsMigrating reports whether the instance is mid-migration.
func (s *ShareInstance) IsMigrating() bool {
	return s.Status == StatusMigrating
}

// InMaintenance reports whether the backend's enforced rule state is
// untrusted because the last reconciliation failed.
func (s *ShareInstance) InMaintenance() bool {
	return s.AccessRulesStatus == AccessRulesError
}

// ShareServer is a backend server hosting one or more share instances.
// Drivers that manage share servers receive it on every call.
type ShareServer struct {
	ID      string            `json:"id" yaml:"id"`
	Host    string            `json:"host" yaml:"host"`
	Details map[string]string `json:"details,omitempty" yaml:"details,omitempty"`
}

// RuleIDs returns the ids of the given rules in order.
func RuleIDs(rules []AccessRule) []string {
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	return ids
}
