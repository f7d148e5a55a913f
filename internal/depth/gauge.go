// Package depth tracks reentrancy of interception points.
//
// The host framework may re-enter the same interception point before the
// outer call returns (a fixture constructor building a rule chain that calls
// back into creation, proxies calling proxies). A Gauge counts the nesting so
// that side effects run only for the outermost call: on entry when Enter
// returns 1 and on exit when Exit returns 0.
//
// A Table is owned by a single goroutine and is never locked.
package depth

import (
	"fmt"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/framework"
	"github.com/giantswarm/testhooks/pkg/logging"
)

// Gauge is a non-negative nesting counter.
type Gauge struct {
	depth int
}

// Increase increments the gauge and returns the depth after the increment.
func (g *Gauge) Increase() int {
	g.depth++
	return g.depth
}

// Decrease decrements the gauge and returns the depth after the decrement.
// Decreasing a gauge at zero is an instrumentation error; the gauge stays at zero.
func (g *Gauge) Decrease() (int, error) {
	if g.depth == 0 {
		return 0, api.NewIllegalStateError("DepthGauge", "decrease below zero")
	}
	g.depth--
	return g.depth, nil
}

// Depth returns the current depth.
func (g *Gauge) Depth() int {
	return g.depth
}

// Site identifies an interception point.
type Site int

const (
	SiteRun Site = iota
	SiteSchedule
	SiteCreateTest
	SiteDescribeChild
	SiteRunChild
	SiteInvoke
)

func (s Site) String() string {
	switch s {
	case SiteRun:
		return "run"
	case SiteSchedule:
		return "schedule"
	case SiteCreateTest:
		return "createTest"
	case SiteDescribeChild:
		return "describeChild"
	case SiteRunChild:
		return "runChild"
	case SiteInvoke:
		return "invoke"
	default:
		return fmt.Sprintf("site(%d)", int(s))
	}
}

// Key identifies one gauge: an interception point and the handles of the
// objects it was invoked for. Aux is zero when a single target suffices.
type Key struct {
	Site   Site
	Target framework.Handle
	Aux    framework.Handle
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d", k.Site, k.Target, k.Aux)
}

// Table holds the gauges of one goroutine. Gauges are created on first
// entry and removed when they return to zero, so the table only holds keys
// that are currently being executed.
type Table struct {
	gauges map[Key]*Gauge
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{gauges: make(map[Key]*Gauge)}
}

// Enter increments the gauge for key and returns the depth after the increment.
func (t *Table) Enter(key Key) int {
	g, ok := t.gauges[key]
	if !ok {
		g = &Gauge{}
		t.gauges[key] = g
	}
	return g.Increase()
}

// Exit decrements the gauge for key and returns the depth after the
// decrement, removing the gauge when it reaches zero. Exiting a key that was
// never entered is an IllegalStateError.
func (t *Table) Exit(key Key) (int, error) {
	g, ok := t.gauges[key]
	if !ok {
		logging.Warn("DepthGauge", "Exit without matching enter for %s", key)
		return 0, api.NewIllegalStateError("DepthGauge", "exit without matching enter for %s", key)
	}
	d, err := g.Decrease()
	if err != nil {
		return 0, err
	}
	if d == 0 {
		delete(t.gauges, key)
	}
	return d, nil
}

// Depth returns the current depth for key, 0 when absent.
func (t *Table) Depth(key Key) int {
	if g, ok := t.gauges[key]; ok {
		return g.Depth()
	}
	return 0
}

// Len returns the number of live gauges.
func (t *Table) Len() int {
	return len(t.gauges)
}
