package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/giantswarm/testhooks/internal/framework"
)

// buildClass turns a class spec into a framework test class whose method
// bodies play back the scripted outcomes.
func buildClass(spec ClassSpec) *framework.TestClass {
	class := framework.NewTestClass(spec.Name, nil)
	class.NoRetry = spec.NoRetry
	if spec.RuleTimeout != nil {
		class.Rule = &framework.TimeoutRule{Timeout: *spec.RuleTimeout}
	}
	for _, m := range spec.Befores {
		class.AddBefore(buildMethod(m))
	}
	for _, m := range spec.Methods {
		class.AddTest(buildMethod(m))
	}
	for _, m := range spec.Afters {
		class.AddAfter(buildMethod(m))
	}
	return class
}

func buildMethod(spec MethodSpec) *framework.Method {
	m := framework.NewMethod(spec.Name, newScript(spec).body)
	m.Ignored = spec.Ignored
	m.NoRetry = spec.NoRetry
	m.Params = spec.Params
	if spec.Timeout > 0 {
		m.WithTimeout(spec.Timeout)
	}
	return m
}

// script counts the calls of a method per parameter set and picks the
// outcome of each call.
type script struct {
	spec    MethodSpec
	indexes map[string]int

	mu    sync.Mutex
	calls map[string]int
}

func newScript(spec MethodSpec) *script {
	s := &script{
		spec:    spec,
		indexes: make(map[string]int, len(spec.Params)),
		calls:   make(map[string]int),
	}
	for i, params := range spec.Params {
		s.indexes[fmt.Sprint(params)] = i
	}
	return s
}

func (s *script) next(args []interface{}) (Outcome, int) {
	key := fmt.Sprint(args)

	s.mu.Lock()
	call := s.calls[key]
	s.calls[key]++
	s.mu.Unlock()

	outcomes := s.spec.Outcomes
	if idx, ok := s.indexes[key]; ok && args != nil {
		if override, ok := s.spec.ParamOutcomes[idx]; ok {
			outcomes = override
		}
	}
	switch {
	case len(outcomes) == 0:
		return OutcomePass, call
	case call < len(outcomes):
		return outcomes[call], call
	default:
		return outcomes[len(outcomes)-1], call
	}
}

func (s *script) body(ctx context.Context, _ *framework.Instance, args []interface{}) error {
	outcome, call := s.next(args)
	attempt := call + 1

	if s.spec.Sleep > 0 {
		select {
		case <-time.After(s.spec.Sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	switch outcome {
	case OutcomeFail:
		return fmt.Errorf("%s failed on call %d", s.spec.Name, attempt)
	case OutcomeAssume:
		return framework.Assume(fmt.Sprintf("%s skipped on call %d", s.spec.Name, attempt))
	case OutcomeTimeout:
		if _, ok := ctx.Deadline(); !ok {
			return errors.New(s.spec.Name + " scripted a timeout but no timeout applies")
		}
		<-ctx.Done()
		return ctx.Err()
	case OutcomePanic:
		panic(fmt.Sprintf("%s panicked on call %d", s.spec.Name, attempt))
	}
	return nil
}
