// Package access reconciles the access rules recorded for a share instance
// with the rules enforced by its storage driver.
//
// # Passes
//
// Engine.UpdateAccessRules runs one or more passes. Each pass:
//
//  1. reads the share instance and its stored rules
//  2. withholds deletions from the driver while the instance is in
//     maintenance mode (access-rules status error)
//  3. while the instance migrates, presents either the existing rules or
//     nothing, depending on the driver's read-only migration support, and
//     no additions or deletions
//  4. calls the driver's bulk UpdateAccess, or AllowAccess/DenyAccess per
//     rule when the driver reports the bulk call as not supported
//  5. validates and stores the access keys the driver returned
//  6. removes the requested deletions from the store
//  7. compares the stored rule ids with the ones it started from
//
// If the stored rules changed during the pass another pass runs with empty
// batches, up to the configured limit. When no drift remains the access
// rules status becomes active.
//
// # Failure handling
//
// A driver error sets the access-rules status to error and is returned
// as is. An invalid access-key payload returns an api.InvalidError and
// leaves the status alone; whatever the driver already applied stays
// applied. Store errors are returned wrapped and do not touch the status.
package access
