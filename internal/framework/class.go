package framework

import (
	"context"
	"sync"
	"time"
)

// Instance is one object under test, created fresh for every test attempt.
type Instance struct {
	handle Handle
	// Value is the user's fixture object returned by TestClass.New.
	Value interface{}
}

// NewInstance wraps a fixture value with a fresh identity.
func NewInstance(v interface{}) *Instance {
	return &Instance{handle: NewHandle(), Value: v}
}

// Handle returns the instance identity.
func (i *Instance) Handle() Handle {
	return i.handle
}

// Body is the code of a test, setup or teardown method. args carries the
// parameter set for parameterized methods and is nil otherwise.
type Body func(ctx context.Context, target *Instance, args []interface{}) error

// Method is an executable method of a test class.
type Method struct {
	handle Handle

	Name string
	Body Body
	// Ignored methods are reported as ignored without being executed.
	Ignored bool
	// NoRetry opts this method out of automatic retry.
	NoRetry bool
	// Params holds the parameter sets of a parameterized method.
	Params [][]interface{}

	class *TestClass

	mu       sync.RWMutex
	declared time.Duration
	timeout  time.Duration
	managed  bool
}

// NewMethod creates a method with the given body.
func NewMethod(name string, body Body) *Method {
	return &Method{handle: NewHandle(), Name: name, Body: body}
}

// Handle returns the method identity.
func (m *Method) Handle() Handle {
	return m.handle
}

// Class returns the declaring class, or nil for detached methods.
func (m *Method) Class() *TestClass {
	return m.class
}

// WithTimeout sets the method's declared timeout. It is meant for building
// classes, before any test runs.
func (m *Method) WithTimeout(d time.Duration) *Method {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declared = d
	m.timeout = d
	return m
}

// DeclaredTimeout returns the timeout the test author declared.
func (m *Method) DeclaredTimeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.declared
}

// Timeout returns the effective timeout enforced for the method body.
func (m *Method) Timeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeout
}

// SetEffectiveTimeout replaces the enforced timeout and marks the method as
// externally managed. Managed methods are not additionally wrapped by the
// class-level timeout rule.
func (m *Method) SetEffectiveTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = d
	m.managed = true
}

// TimeoutManaged reports whether SetEffectiveTimeout has been applied.
func (m *Method) TimeoutManaged() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.managed
}

// IsParameterized reports whether the method runs once per parameter set.
func (m *Method) IsParameterized() bool {
	return len(m.Params) > 0
}

// TimeoutRule is a class-level rule that wraps every test of the class in a
// timeout watchdog.
type TimeoutRule struct {
	Timeout time.Duration
}

// TestClass groups test methods with their setup and teardown methods.
type TestClass struct {
	handle Handle

	Name string
	// New creates the fixture for one test attempt. A nil New yields a nil fixture.
	New func() interface{}
	// NoRetry opts every method of the class out of automatic retry.
	NoRetry bool
	// Rule is the declared timeout rule, if any.
	Rule *TimeoutRule
	// RuleSource, when set, is consulted instead of Rule. It models rule
	// discovery that can fail at runtime.
	RuleSource func() (*TimeoutRule, error)

	befores []*Method
	afters  []*Method
	methods []*Method
}

// NewTestClass creates an empty class.
func NewTestClass(name string, newFn func() interface{}) *TestClass {
	return &TestClass{handle: NewHandle(), Name: name, New: newFn}
}

// Handle returns the class identity.
func (c *TestClass) Handle() Handle {
	return c.handle
}

// AddBefore registers a setup method run before every test.
func (c *TestClass) AddBefore(m *Method) *TestClass {
	m.class = c
	c.befores = append(c.befores, m)
	return c
}

// AddAfter registers a teardown method run after every test.
func (c *TestClass) AddAfter(m *Method) *TestClass {
	m.class = c
	c.afters = append(c.afters, m)
	return c
}

// AddTest registers a test method.
func (c *TestClass) AddTest(m *Method) *TestClass {
	m.class = c
	c.methods = append(c.methods, m)
	return c
}

// Befores returns the setup methods in declaration order.
func (c *TestClass) Befores() []*Method {
	return c.befores
}

// Afters returns the teardown methods in declaration order.
func (c *TestClass) Afters() []*Method {
	return c.afters
}

// Tests returns the test methods in declaration order.
func (c *TestClass) Tests() []*Method {
	return c.methods
}

// TimeoutRule returns the class's timeout rule, or nil when none is declared.
func (c *TestClass) TimeoutRule() (*TimeoutRule, error) {
	if c.RuleSource != nil {
		return c.RuleSource()
	}
	return c.Rule, nil
}
