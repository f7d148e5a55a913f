package framework

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Suite runs nested runners, sequentially or with bounded parallelism.
type Suite struct {
	handle   Handle
	name     string
	children []Runner
	parallel int

	mu    sync.RWMutex
	hooks Hooks
}

var _ Runner = (*Suite)(nil)

// NewSuite creates a suite of children. parallel > 1 runs up to that many
// children concurrently, each on its own goroutine.
func NewSuite(name string, parallel int, children ...Runner) *Suite {
	return &Suite{
		handle:   NewHandle(),
		name:     name,
		children: children,
		parallel: parallel,
		hooks:    NopHooks{},
	}
}

func (s *Suite) Handle() Handle { return s.handle }

func (s *Suite) Name() string { return s.name }

func (s *Suite) ChildName() string { return s.name }

func (s *Suite) TestClass() *TestClass { return nil }

// Children returns the nested runners.
func (s *Suite) Children() []Runner { return s.children }

// SetHooks installs h on the suite and every nested runner.
func (s *Suite) SetHooks(h Hooks) {
	if h == nil {
		h = NopHooks{}
	}
	s.mu.Lock()
	s.hooks = h
	s.mu.Unlock()
	for _, child := range s.children {
		child.SetHooks(h)
	}
}

func (s *Suite) Hooks() Hooks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks
}

func (s *Suite) Description() *Description {
	children := make([]*Description, 0, len(s.children))
	for _, child := range s.children {
		children = append(children, child.Description())
	}
	return NewSuiteDescription(s.name, children...)
}

// Run executes the nested runners. Failures of one child do not stop the
// others; all errors are joined.
func (s *Suite) Run(ctx context.Context, n *RunNotifier) error {
	hooks := s.Hooks()
	return hooks.Run(ctx, s, n, func(ctx context.Context) error {
		var (
			mu   sync.Mutex
			errs []error
		)
		record := func(err error) {
			if err == nil {
				return
			}
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}

		schedule := func(child Runner) func() error {
			return func() error {
				record(hooks.ScheduleChild(ctx, s, func(ctx context.Context) error {
					return hooks.RunChild(ctx, s, child, n, func(ctx context.Context) error {
						return child.Run(ctx, n)
					})
				}))
				return nil
			}
		}

		if s.parallel > 1 {
			var g errgroup.Group
			g.SetLimit(s.parallel)
			for _, child := range s.children {
				g.Go(schedule(child))
			}
			_ = g.Wait()
		} else {
			for _, child := range s.children {
				_ = schedule(child)()
			}
		}

		record(hooks.ScheduleFinished(ctx, s, func(context.Context) error { return nil }))
		return errors.Join(errs...)
	})
}
