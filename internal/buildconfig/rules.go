package buildconfig

// MatchPolicy decides how many rules apply to one file.
type MatchPolicy int

const (
	// FirstMatch applies only the first rule, in declaration order, that
	// matches a path. This is how the esbuild backed builder routes files.
	FirstMatch MatchPolicy = iota
	// Compose applies every matching rule in declaration order.
	Compose
)

// Rules is an ordered list of asset rules.
type Rules []AssetRule

// Match returns the rules that claim path under the given policy.
func (r Rules) Match(path string, policy MatchPolicy) []AssetRule {
	var matched []AssetRule
	for _, rule := range r {
		if !rule.Matches(path) {
			continue
		}
		matched = append(matched, rule)
		if policy == FirstMatch {
			break
		}
	}
	return matched
}

// Named returns the rule with the given category name.
func (r Rules) Named(name string) (AssetRule, bool) {
	for _, rule := range r {
		if rule.Name == name {
			return rule, true
		}
	}
	return AssetRule{}, false
}

// Compile compiles every rule pattern. Catalogs decoded from YAML must be
// compiled before use.
func (r Rules) Compile() error {
	for i := range r {
		if err := r[i].compile(); err != nil {
			return wrapInvalid("rule %q: %v", r[i].Name, err)
		}
	}
	return nil
}

func (r Rules) clone() Rules {
	out := make(Rules, len(r))
	for i, rule := range r {
		out[i] = rule
		out[i].Pipeline = make([]Step, len(rule.Pipeline))
		for j, step := range rule.Pipeline {
			out[i].Pipeline[j] = step.clone()
		}
	}
	return out
}
