package build

import (
	"errors"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/cancel"
	"github.com/jbigot/pkg-builder/internal/models"
)

// Scheduler executes a linked node set with bounded parallelism,
// dependency order, and first-failure cancellation.
type Scheduler struct {
	bus  *cancel.Bus
	jobs int
}

// NewScheduler creates a scheduler with the given pool size; zero or
// negative means NumCPU+1.
func NewScheduler(bus *cancel.Bus, jobs int) *Scheduler {
	if jobs <= 0 {
		jobs = runtime.NumCPU() + 1
	}
	return &Scheduler{bus: bus, jobs: jobs}
}

type buildResult struct {
	node Node
	err  error
}

// Run builds every node under workRoot. No node starts before each of its
// dependencies is finished or skipped. The first failure cancels the rest
// and is returned; consequential cancellations are not reported as
// independent failures.
func (s *Scheduler) Run(nodes []Node, workRoot string) error {
	waiting := make(map[Node]struct{}, len(nodes))
	for _, n := range nodes {
		waiting[n] = struct{}{}
	}

	tasks := make(chan Node, len(nodes))
	results := make(chan buildResult, len(nodes))
	defer close(tasks)
	for i := 0; i < s.jobs; i++ {
		go func() {
			for n := range tasks {
				results <- buildResult{node: n, err: n.Build(workRoot)}
			}
		}()
	}

	inFlight := 0
	var firstErr error
	for {
		// submit every ready node; skipped ones may unblock more, so
		// keep sweeping until the waiting set stops shrinking
		for firstErr == nil {
			progressed := false
			for n := range waiting {
				if !ready(n) {
					continue
				}
				delete(waiting, n)
				progressed = true
				if n.Kind() == SourceAbsent {
					logrus.Infof("skipping %s on %s: no packaging metadata", n.Name(), n.Release())
					n.setState(StateSkipped)
					continue
				}
				n.setState(StateBuilding)
				tasks <- n
				inFlight++
			}
			if !progressed {
				break
			}
		}

		if firstErr == nil && inFlight == 0 && len(waiting) > 0 {
			firstErr = models.ErrDeadlock
			s.bus.RequestCancel()
		}
		if inFlight == 0 {
			return firstErr
		}

		res := <-results
		inFlight--
		switch {
		case res.err == nil:
			res.node.setState(StateFinished)
			logrus.Infof("finished %s on %s", res.node.Name(), res.node.Release())
		case errors.Is(res.err, models.ErrCancelled):
			res.node.setState(StateCancelled)
			if firstErr == nil {
				firstErr = res.err
			}
		default:
			res.node.setState(StateFailed)
			logrus.Errorf("failed %s on %s: %v", res.node.Name(), res.node.Release(), res.err)
			if firstErr == nil {
				firstErr = res.err
				s.bus.RequestCancel()
			}
		}
	}
}

// ready reports whether every dependency of a linked node is finished or
// skipped. An unresolved node is never ready.
func ready(n Node) bool {
	if !n.Resolved() {
		return false
	}
	for _, dep := range n.DependsOn() {
		if dep.State() != StateFinished && dep.State() != StateSkipped {
			return false
		}
	}
	return true
}
