// Package harness runs conformance scenarios against the query builder
// and the validation engine.
//
// Every scenario runs in a fresh in-memory SQLite database. Statements
// reach the store through a tracing gateway, so the trace records exactly
// what the builder sent, including the lookups of unique and exists rules.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: unique_email
//	description: "A duplicate email is rejected before the insert"
//	schema:
//	  - CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)
//	steps:
//	  - op: create
//	    table: users
//	    data: { email: ada@example.com }
//	    rules: { email: "required|email|unique:users" }
//	    expect: { success: true, rows_affected: 1 }
//	  - op: count
//	    table: users
//	    query:
//	      where:
//	        - { column: email, op: "=", value: ada@example.com }
//	    expect: { count: 1 }
//	assertions:
//	  - type: trace_order
//	    statements: ["SELECT COUNT(*)", "INSERT INTO users"]
//	  - type: final_state
//	    table: users
//	    where: { id: 1 }
//	    expect: { email: ada@example.com }
//
// Unknown fields are rejected, so typos fail loudly.
//
// # Assertion Types
//
//   - trace_contains: some statement contains the given SQL
//   - trace_order: statements appear in the given order
//   - trace_count: exactly N statements contain the given SQL
//   - final_state: exactly one row matches and has the expected values
//   - row_count: a table has N rows matching the filter
//
// # Golden Files
//
// Snapshot renders the trace as indented JSON. Traces are deterministic:
// sequence numbers restart at one per scenario and the database is fresh,
// so identical scenarios produce identical snapshots.
package harness
