package validation

import "strings"

// Rules maps a field name to its rule spec, e.g. {"name": "required|min:3"}.
type Rules map[string]string

// RuleSpec is one parsed rule token: "min:3" is {Name: "min", Params: ["3"]}.
type RuleSpec struct {
	Name   string
	Params []string
}

// ParseRuleSpec splits a rule spec on "|" into rule tokens and each token on
// its first ":" into a name and a comma-separated parameter list.
//
// Empty tokens, empty names and a ":" followed by nothing are malformed.
// field is only used to label errors.
func ParseRuleSpec(field, spec string) ([]RuleSpec, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, malformed(field, "rule spec is empty")
	}

	tokens := strings.Split(spec, "|")
	specs := make([]RuleSpec, 0, len(tokens))
	for i, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, malformed(field, "empty rule at position %d in %q", i+1, spec)
		}

		name, rawParams, hasParams := strings.Cut(token, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, malformed(field, "rule at position %d has no name in %q", i+1, spec)
		}

		rs := RuleSpec{Name: name}
		if hasParams {
			if rawParams == "" {
				return nil, malformed(field, "rule %q has an empty parameter list", name)
			}
			rs.Params = strings.Split(rawParams, ",")
		}
		specs = append(specs, rs)
	}
	return specs, nil
}
