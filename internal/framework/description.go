package framework

import "fmt"

// Description is the reporting-facing identity of a test or suite. A new
// Description (with a new handle) is built every time a child is described,
// so a retried test is reported under a different handle on each attempt.
type Description struct {
	handle Handle

	// DisplayName is what reporters show, e.g. "checkout[2]".
	DisplayName string
	// ClassName is the test class (or suite) name.
	ClassName string
	// MethodName is empty for suite descriptions.
	MethodName string
	// Children holds nested descriptions for suites.
	Children []*Description

	retried bool
	cause   error
	origin  *Description
}

// NewSuiteDescription creates a description for a runner.
func NewSuiteDescription(name string, children ...*Description) *Description {
	return &Description{
		handle:      NewHandle(),
		DisplayName: name,
		ClassName:   name,
		Children:    children,
	}
}

// NewTestDescription creates a description for one executable test.
func NewTestDescription(className, methodName, displayName string) *Description {
	if displayName == "" {
		displayName = methodName
	}
	return &Description{
		handle:      NewHandle(),
		DisplayName: displayName,
		ClassName:   className,
		MethodName:  methodName,
	}
}

// Handle returns the description's identity.
func (d *Description) Handle() Handle {
	return d.handle
}

// IsTest reports whether the description denotes a single test.
func (d *Description) IsTest() bool {
	return d.MethodName != ""
}

// IsRetried reports whether this description marks an attempt that is being retried.
func (d *Description) IsRetried() bool {
	return d.retried
}

// Cause returns the failure that triggered the retry, if any.
func (d *Description) Cause() error {
	return d.cause
}

// Origin returns the description a retried description was derived from.
func (d *Description) Origin() *Description {
	return d.origin
}

// Retried derives the description used to report a retried attempt as ignored.
func (d *Description) Retried(cause error) *Description {
	return &Description{
		handle:      NewHandle(),
		DisplayName: d.DisplayName,
		ClassName:   d.ClassName,
		MethodName:  d.MethodName,
		retried:     true,
		cause:       cause,
		origin:      d,
	}
}

// Equal compares descriptions structurally, ignoring their handles. It is the
// predicate used when a description was synthesized outside the runner that
// owns the test.
func (d *Description) Equal(other *Description) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.ClassName == other.ClassName &&
		d.MethodName == other.MethodName &&
		d.DisplayName == other.DisplayName
}

// TestCount returns the number of tests below (and including) this description.
func (d *Description) TestCount() int {
	if d.IsTest() {
		return 1
	}
	count := 0
	for _, child := range d.Children {
		count += child.TestCount()
	}
	return count
}

func (d *Description) String() string {
	if d.IsTest() {
		return fmt.Sprintf("%s(%s)", d.DisplayName, d.ClassName)
	}
	return d.DisplayName
}
