// Package correlate reconstructs identity relationships between runners,
// methods, fixture instances and descriptions from independent interception
// points.
//
// Every mapping lives in a lock-free concurrent map keyed by arena handles.
// Entries created while a test is set up are removed exactly once, when the
// test's finish (or terminal ignore) is dispatched, through Release.
package correlate

import (
	"fmt"

	"github.com/giantswarm/testhooks/internal/api"
	"github.com/giantswarm/testhooks/internal/framework"
	"github.com/giantswarm/testhooks/pkg/logging"
)

type childKey struct {
	runner framework.Handle
	method framework.Handle
}

func keyOf(runner framework.Runner, method *framework.Method) childKey {
	return childKey{runner: runner.Handle(), method: method.Handle()}
}

// Store is the correlation store shared by every goroutine of a run. Create
// one per engine; the zero value is ready to use.
type Store struct {
	runs    syncMap[framework.Handle, *RunContext]
	classes syncMap[framework.Handle, *framework.TestClass]

	instanceMethod syncMap[framework.Handle, *framework.Method]
	instanceRunner syncMap[framework.Handle, framework.Runner]
	instanceDesc   syncMap[framework.Handle, *framework.Description]
	descInstance   syncMap[framework.Handle, *framework.Instance]

	tests    syncMap[childKey, *AtomicTest]
	descTest syncMap[framework.Handle, *AtomicTest]

	pendingInstance syncMap[childKey, *framework.Instance]
	pendingDesc     syncMap[childKey, *framework.Description]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// StartRun registers the run context of runner. parent is nil for the root runner.
func (s *Store) StartRun(runner framework.Runner, notifier *framework.RunNotifier, parent *RunContext) *RunContext {
	rc := &RunContext{runner: runner, notifier: notifier, parent: parent}
	if _, replaced := s.runs.Store(runner.Handle(), rc); replaced {
		logging.Warn("Correlator", "Run context of %s replaced by a new run", runner.Name())
	}
	if class := runner.TestClass(); class != nil {
		s.classes.Store(runner.Handle(), class)
	}
	logging.Debug("Correlator", "Started run context for %s", runner.Name())
	return rc
}

// FinishRun drops the run context of runner. Tests of the run that were
// never released are released now and reported as a warning.
func (s *Store) FinishRun(runner framework.Runner) {
	rc, ok := s.runs.LoadAndDelete(runner.Handle())
	s.classes.Delete(runner.Handle())
	if !ok {
		return
	}
	var stale []*AtomicTest
	rc.EachTest(func(at *AtomicTest) bool {
		stale = append(stale, at)
		return true
	})
	for _, at := range stale {
		s.releaseTest(at)
	}
	if len(stale) > 0 {
		logging.Warn("Correlator", "Released %d unfinished tests of %s", len(stale), runner.Name())
	}
}

// RunContextFor returns the active run context of runner.
func (s *Store) RunContextFor(runner framework.Runner) (*RunContext, error) {
	rc, ok := s.runs.Load(runner.Handle())
	if !ok {
		return nil, api.NewNotFoundError("run context", runner.Name())
	}
	return rc, nil
}

// ClassFor returns the test class of an active class runner.
func (s *Store) ClassFor(runner framework.Runner) (*framework.TestClass, error) {
	class, ok := s.classes.Load(runner.Handle())
	if !ok {
		return nil, api.NewNotFoundError("test class", runner.Name())
	}
	return class, nil
}

// AtomicTestFor returns the atomic test for (runner, method), creating it on
// first reference. The runner must have an active run context.
func (s *Store) AtomicTestFor(runner framework.Runner, method *framework.Method) (*AtomicTest, error) {
	key := keyOf(runner, method)
	if at, ok := s.tests.Load(key); ok {
		return at, nil
	}
	rc, err := s.RunContextFor(runner)
	if err != nil {
		return nil, fmt.Errorf("failed to create atomic test %s: %w", method.Name, err)
	}
	class, _ := s.classes.Load(runner.Handle())
	at, loaded := s.tests.LoadOrStore(key, newAtomicTest(method, rc, class))
	if !loaded {
		rc.addChild(at)
	}
	return at, nil
}

// RecordTestCreated correlates a freshly created fixture instance with the
// runner and method it was created for. A description already bound for
// (runner, method) is completed; otherwise the instance is parked until the
// description arrives or TakeInstance retrieves it.
func (s *Store) RecordTestCreated(runner framework.Runner, method *framework.Method, inst *framework.Instance) error {
	if inst == nil {
		return api.NewIllegalStateError("Correlator", "nil instance recorded for %s", method.Name)
	}
	s.instanceMethod.Store(inst.Handle(), method)
	s.instanceRunner.Store(inst.Handle(), runner)

	key := keyOf(runner, method)
	if desc, ok := s.pendingDesc.LoadAndDelete(key); ok {
		s.bind(desc, inst)
		return nil
	}
	if old, replaced := s.pendingInstance.Store(key, inst); replaced && old != inst {
		logging.Debug("Correlator", "Discarding unclaimed instance of %s", method.Name)
		s.releaseInstance(old)
	}
	return nil
}

// TakeInstance returns the parked instance for (runner, method) and removes
// it, so that it cannot be reattached to a later attempt.
func (s *Store) TakeInstance(runner framework.Runner, method *framework.Method) (*framework.Instance, bool) {
	return s.pendingInstance.LoadAndDelete(keyOf(runner, method))
}

// BindDescription binds desc to the atomic test of (runner, method) and to
// its instance. When no instance was created yet, the binding is deferred
// until RecordTestCreated runs.
func (s *Store) BindDescription(desc *framework.Description, runner framework.Runner, method *framework.Method) (*AtomicTest, error) {
	at, err := s.AtomicTestFor(runner, method)
	if err != nil {
		return nil, err
	}
	at.SetDescription(desc)
	s.descTest.Store(desc.Handle(), at)

	key := keyOf(runner, method)
	if inst, ok := s.pendingInstance.LoadAndDelete(key); ok {
		s.bind(desc, inst)
		return at, nil
	}
	if old, replaced := s.pendingDesc.Store(key, desc); replaced && old != desc {
		s.descTest.CompareAndDelete(old.Handle(), at)
	}
	return at, nil
}

func (s *Store) bind(desc *framework.Description, inst *framework.Instance) {
	s.instanceDesc.Store(inst.Handle(), desc)
	s.descInstance.Store(desc.Handle(), inst)
}

// ResolveMethodFor returns the method inst was created for.
func (s *Store) ResolveMethodFor(inst *framework.Instance) (*framework.Method, error) {
	m, ok := s.instanceMethod.Load(inst.Handle())
	if !ok {
		return nil, api.NewNotFoundError("instance", fmt.Sprint(inst.Handle()))
	}
	return m, nil
}

// ResolveRunnerFor returns the runner that created inst.
func (s *Store) ResolveRunnerFor(inst *framework.Instance) (framework.Runner, error) {
	r, ok := s.instanceRunner.Load(inst.Handle())
	if !ok {
		return nil, api.NewNotFoundError("instance", fmt.Sprint(inst.Handle()))
	}
	return r, nil
}

// DescriptionFor returns the description bound to inst.
func (s *Store) DescriptionFor(inst *framework.Instance) (*framework.Description, error) {
	d, ok := s.instanceDesc.Load(inst.Handle())
	if !ok {
		return nil, api.NewNotFoundError("description of instance", fmt.Sprint(inst.Handle()))
	}
	return d, nil
}

// InstanceFor returns the instance bound to desc.
func (s *Store) InstanceFor(desc *framework.Description) (*framework.Instance, error) {
	inst, ok := s.descInstance.Load(desc.Handle())
	if !ok {
		return nil, api.NewNotFoundError("instance of description", desc.String())
	}
	return inst, nil
}

// TestFor resolves the atomic test desc reports for. A retried description
// resolves through the description it was derived from. When no direct
// mapping exists, the children of the run contexts for desc's class are
// scanned for a structurally equal description.
func (s *Store) TestFor(desc *framework.Description) (*AtomicTest, error) {
	if at, ok := s.descTest.Load(desc.Handle()); ok {
		return at, nil
	}
	if origin := desc.Origin(); origin != nil {
		if at, ok := s.descTest.Load(origin.Handle()); ok {
			return at, nil
		}
	}

	var found *AtomicTest
	s.runs.Range(func(_ framework.Handle, rc *RunContext) bool {
		if rc.runner.Name() != desc.ClassName {
			return true
		}
		rc.EachTest(func(at *AtomicTest) bool {
			if at.Description().Equal(desc) {
				found = at
				return false
			}
			return true
		})
		return found == nil
	})
	if found == nil {
		return nil, api.NewNotFoundError("atomic test", desc.String())
	}
	logging.Debug("Correlator", "Resolved %s by structural match", desc)
	return found, nil
}

// Release removes every entry rooted at desc: its atomic test binding, the
// instance bound to it in both directions, and the pending mappings. With
// final set, the atomic test itself is dropped from the store and its run
// context. Release is idempotent.
func (s *Store) Release(desc *framework.Description, final bool) {
	if desc == nil {
		return
	}
	if origin := desc.Origin(); origin != nil {
		s.Release(origin, final)
	}

	at, _ := s.descTest.LoadAndDelete(desc.Handle())
	if inst, ok := s.descInstance.LoadAndDelete(desc.Handle()); ok {
		s.releaseInstance(inst)
	}
	if at == nil {
		return
	}
	key := keyOf(at.run.runner, at.method)
	s.pendingDesc.CompareAndDelete(key, desc)
	if final {
		s.releaseTest(at)
	}
}

// releaseTest drops the atomic test and anything still parked for it.
func (s *Store) releaseTest(at *AtomicTest) {
	key := keyOf(at.run.runner, at.method)
	s.tests.CompareAndDelete(key, at)
	at.run.removeChild(at)
	if inst, ok := s.pendingInstance.LoadAndDelete(key); ok {
		s.releaseInstance(inst)
	}
	if desc, ok := s.pendingDesc.LoadAndDelete(key); ok {
		s.descTest.Delete(desc.Handle())
	}
	if desc := at.Description(); desc != nil {
		s.descTest.CompareAndDelete(desc.Handle(), at)
		if inst, ok := s.descInstance.LoadAndDelete(desc.Handle()); ok {
			s.releaseInstance(inst)
		}
	}
}

func (s *Store) releaseInstance(inst *framework.Instance) {
	h := inst.Handle()
	s.instanceMethod.Delete(h)
	s.instanceRunner.Delete(h)
	if desc, ok := s.instanceDesc.LoadAndDelete(h); ok {
		s.descInstance.CompareAndDelete(desc.Handle(), inst)
	}
}

// Stats holds per-map entry counts.
type Stats struct {
	Runs            int
	Classes         int
	InstanceMethod  int
	InstanceRunner  int
	InstanceDesc    int
	DescInstance    int
	Tests           int
	DescTest        int
	PendingInstance int
	PendingDesc     int
}

// Total returns the number of entries across all maps.
func (st Stats) Total() int {
	return st.Runs + st.Classes + st.InstanceMethod + st.InstanceRunner + st.InstanceDesc +
		st.DescInstance + st.Tests + st.DescTest + st.PendingInstance + st.PendingDesc
}

// Len returns the entry counts of every map.
func (s *Store) Len() Stats {
	return Stats{
		Runs:            s.runs.Len(),
		Classes:         s.classes.Len(),
		InstanceMethod:  s.instanceMethod.Len(),
		InstanceRunner:  s.instanceRunner.Len(),
		InstanceDesc:    s.instanceDesc.Len(),
		DescInstance:    s.descInstance.Len(),
		Tests:           s.tests.Len(),
		DescTest:        s.descTest.Len(),
		PendingInstance: s.pendingInstance.Len(),
		PendingDesc:     s.pendingDesc.Len(),
	}
}
