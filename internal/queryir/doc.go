// Package queryir holds the clause state a query builder accumulates before
// it is compiled to SQL.
//
// The state is deliberately inert: it knows nothing about placeholders,
// dialects or execution. Package querysql turns a State into a parameterized
// statement, and package builder owns the fluent API that mutates it.
//
// STATE:
//
//	State{
//	  Table:      "users",
//	  Columns:    ["id", "name"],         // empty means "*"
//	  Conditions: ConditionSet{...},      // ANDed in insertion order
//	  Joins:      []JoinClause{...},
//	  GroupBy:    "role",
//	  OrderBy:    OrderClause{Column: "name", Direction: Desc},
//	  Limit:      &10,
//	  Offset:     &20,
//	}
//
// IDENTIFIERS:
//
// Placeholder binding protects values, never identifiers. Every table and
// column name that ends up in SQL text passes through one of the sanitizers
// in this package first:
//   - SanitizeColumn strips anything outside [A-Za-z0-9_*] (projected columns)
//   - SanitizeReference strips anything outside [A-Za-z0-9_.] (tables,
//     predicates, ordering, grouping, join conditions)
//
// Sanitization is lossy and is not a security boundary on its own. Builders
// that need a hard boundary configure an allow-list of known columns.
//
// OPERATORS:
//
// Where conditions accept only =, !=, <, >, <=, >=, LIKE and IN. Anything
// else is an INVALID_OPERATOR BuildError.
package queryir
