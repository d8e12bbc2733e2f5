// Package api holds the domain types shared by every sharekeeper package:
// share instances, access rules, share servers, their status enums, the
// store and driver contracts, and the typed errors passed between them.
//
// The package has no dependencies on other sharekeeper packages so stores,
// drivers, the access engine and the CLI can all import it.
package api
