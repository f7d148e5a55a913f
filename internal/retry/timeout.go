package retry

import (
	"time"

	"github.com/giantswarm/testhooks/internal/config"
	"github.com/giantswarm/testhooks/internal/framework"
	"github.com/giantswarm/testhooks/pkg/logging"
)

// Decision is the outcome of timeout resolution.
type Decision struct {
	// Timeout is the effective timeout; zero when none is enforced.
	Timeout time.Duration
	// Disabled is set when an explicit zero turned enforcement off.
	Disabled bool
	// Changed is set when Timeout differs from the declared timeout.
	Changed bool
}

// ResolveTimeout combines the method-declared timeout, the rule timeout and
// the configured test default. nil means "not configured". An explicit zero
// rule or default disables enforcement; otherwise the longest positive value
// wins, so a declared timeout is never shortened.
func ResolveTimeout(declared time.Duration, rule, testDefault *time.Duration) Decision {
	if (rule != nil && *rule == 0) || (testDefault != nil && *testDefault == 0) {
		return Decision{Disabled: true, Changed: declared != 0}
	}
	effective := time.Duration(0)
	for _, candidate := range []*time.Duration{&declared, rule, testDefault} {
		if candidate != nil && *candidate > effective {
			effective = *candidate
		}
	}
	return Decision{Timeout: effective, Changed: effective != declared}
}

// ApplyTimeout resolves the timeout of m from its declaration, the class
// timeout rule (or the configured rule default when the class has none) and
// the configured test default. When the effective value differs from the
// declaration or from the value currently enforced, or a rule takes part,
// the method's effective timeout is replaced and marked managed, so the
// class rule no longer adds a watchdog of its own. Settings may be reloaded
// between runs, so a value from an earlier resolution is never kept.
func ApplyTimeout(m *framework.Method, settings config.Settings) Decision {
	rule := ruleTimeout(m, settings)
	var testDefault *time.Duration
	if d := settings.Timeouts.TestDefault; d != nil {
		v := d.Std()
		testDefault = &v
	}

	decision := ResolveTimeout(m.DeclaredTimeout(), rule, testDefault)
	if decision.Changed || rule != nil || m.Timeout() != decision.Timeout {
		m.SetEffectiveTimeout(decision.Timeout)
		logging.Debug("Timeout", "Effective timeout of %s is %v (disabled=%t)", m.Name, decision.Timeout, decision.Disabled)
	}
	return decision
}

// ruleTimeout looks up the class rule. A failing lookup is treated as "no
// rule" so that a missing feature does not abort the run.
func ruleTimeout(m *framework.Method, settings config.Settings) *time.Duration {
	if class := m.Class(); class != nil {
		rule, err := class.TimeoutRule()
		if err != nil {
			logging.Warn("Timeout", "Could not read timeout rule of %s, ignoring it: %v", class.Name, err)
		} else if rule != nil {
			v := rule.Timeout
			return &v
		}
	}
	if d := settings.Timeouts.RuleDefault; d != nil {
		v := d.Std()
		return &v
	}
	return nil
}
