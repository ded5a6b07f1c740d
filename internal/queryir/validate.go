package queryir

import (
	"strings"
)

// allowedOperators is the complete operator allow-list for where conditions.
var allowedOperators = map[Operator]bool{
	OpEqual:        true,
	OpNotEqual:     true,
	OpLess:         true,
	OpGreater:      true,
	OpLessEqual:    true,
	OpGreaterEqual: true,
	OpLike:         true,
	OpIn:           true,
}

// NormalizeOperator trims and upper-cases op and checks it against the
// allow-list.
func NormalizeOperator(op string) (Operator, error) {
	normalized := Operator(strings.ToUpper(strings.TrimSpace(op)))
	if !allowedOperators[normalized] {
		return "", NewOperatorError(op)
	}
	return normalized, nil
}

// SanitizeColumn strips every character outside [A-Za-z0-9_*] from a
// projected column name. The result must not be empty.
func SanitizeColumn(name string) (string, error) {
	clean := strings.Map(func(r rune) rune {
		if isWordRune(r) || r == '*' {
			return r
		}
		return -1
	}, name)
	if clean == "" {
		return "", NewIdentifierError(name, "column name is empty after sanitization")
	}
	return clean, nil
}

// SanitizeReference strips every character outside [A-Za-z0-9_.] from a
// table name or (optionally qualified) column reference. The result must be
// one or more non-empty dot-separated segments.
func SanitizeReference(name string) (string, error) {
	clean := strings.Map(func(r rune) rune {
		if isWordRune(r) || r == '.' {
			return r
		}
		return -1
	}, name)
	if clean == "" {
		return "", NewIdentifierError(name, "identifier is empty after sanitization")
	}
	for _, part := range strings.Split(clean, ".") {
		if part == "" {
			return "", NewIdentifierError(name, "identifier has an empty segment")
		}
	}
	return clean, nil
}

// ParseOrder parses "column" or "column ASC|DESC".
func ParseOrder(spec string) (OrderClause, error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 || len(fields) > 2 {
		return OrderClause{}, NewArgumentError(spec, "order must be \"column\" or \"column ASC|DESC\"")
	}

	col, err := SanitizeReference(fields[0])
	if err != nil {
		return OrderClause{}, err
	}

	dir := Asc
	if len(fields) == 2 {
		switch Direction(strings.ToUpper(fields[1])) {
		case Asc:
			dir = Asc
		case Desc:
			dir = Desc
		default:
			return OrderClause{}, NewArgumentError(spec, "unknown order direction %q", fields[1])
		}
	}
	return OrderClause{Column: col, Direction: dir}, nil
}

// ParseJoinType normalizes a join type. An empty string means INNER.
func ParseJoinType(t string) (JoinType, error) {
	switch JoinType(strings.ToUpper(strings.TrimSpace(t))) {
	case "", JoinInner:
		return JoinInner, nil
	case JoinLeft:
		return JoinLeft, nil
	case JoinRight:
		return JoinRight, nil
	default:
		return "", NewArgumentError(t, "join type must be INNER, LEFT or RIGHT")
	}
}

// ParseJoin builds a JoinClause from a table, a condition of the form
// "left op right" and a join type.
//
// The operator must be a comparison operator; LIKE and IN are rejected
// because join conditions compare columns, not bound values.
func ParseJoin(table, condition, joinType string) (JoinClause, error) {
	jt, err := ParseJoinType(joinType)
	if err != nil {
		return JoinClause{}, err
	}

	tbl, err := SanitizeReference(table)
	if err != nil {
		return JoinClause{}, err
	}

	fields := strings.Fields(condition)
	if len(fields) != 3 {
		return JoinClause{}, NewArgumentError(condition, "join condition must be \"left op right\"")
	}

	op, err := NormalizeOperator(fields[1])
	if err != nil {
		return JoinClause{}, err
	}
	if op == OpLike || op == OpIn {
		return JoinClause{}, NewOperatorError(fields[1])
	}

	left, err := SanitizeReference(fields[0])
	if err != nil {
		return JoinClause{}, err
	}
	right, err := SanitizeReference(fields[2])
	if err != nil {
		return JoinClause{}, err
	}

	return JoinClause{Type: jt, Table: tbl, Left: left, Operator: op, Right: right}, nil
}

// Bound converts a limit or offset to the unsigned form stored on State.
func Bound(name string, n int) (*uint64, error) {
	if n < 0 {
		return nil, NewArgumentError(name, "%s must be a non-negative integer, got %d", name, n)
	}
	u := uint64(n)
	return &u, nil
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
