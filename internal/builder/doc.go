// Package builder provides the fluent query builder.
//
// A Builder is created per logical query, configured with chain calls and
// consumed by one terminal call:
//
//	rows, err := builder.New(gw, "users").
//		Where("age", ">=", 18).
//		Where("role", "IN", []string{"admin", "staff"}).
//		OrderBy("created_at DESC").
//		Limit(20).
//		Get(ctx)
//
// Every value reaches the store as a bound parameter. Identifiers are
// sanitized to [A-Za-z0-9_.] (plus "*" in projections), and can be further
// restricted with WithAllowedColumns.
//
// Writes validate before they compile. Create and Update report invalid
// input as a WriteResult with Errors and report store failures as a
// *StatementError, so the two are never confused.
package builder
