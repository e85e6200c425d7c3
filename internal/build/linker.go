package build

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/models"
)

// Link wires the flat node set into a DAG by matching provides to requires
// within each release. Two nodes of one release claiming the same binary
// name is a configuration error.
func Link(nodes []Node) error {
	type key struct {
		binary  string
		release string
	}
	producers := map[key]Node{}
	for _, n := range nodes {
		for _, binary := range n.Provides() {
			k := key{binary: binary, release: n.Release().UID()}
			if other, dup := producers[k]; dup && other != n {
				return &models.ConfigError{Detail: fmt.Sprintf(
					"%s and %s both provide %s on %s",
					other.Name(), n.Name(), binary, n.Release())}
			}
			producers[k] = n
		}
	}

	for _, n := range nodes {
		seen := map[Node]struct{}{}
		var deps []Node
		for _, binary := range n.Requires() {
			producer, ok := producers[key{binary: binary, release: n.Release().UID()}]
			if !ok || producer == n {
				// external build dependencies resolve inside the
				// container; a self-provide is satisfied trivially
				continue
			}
			if _, dup := seen[producer]; !dup {
				seen[producer] = struct{}{}
				deps = append(deps, producer)
			}
		}
		n.setDependsOn(deps)
		logrus.Debugf("%s on %s depends on %d sibling package(s)", n.Name(), n.Release(), len(deps))
	}
	return nil
}

// Closure returns the nodes reachable through DependsOn, including start.
func Closure(start Node) []Node {
	seen := map[Node]struct{}{start: {}}
	out := []Node{start}
	for i := 0; i < len(out); i++ {
		for _, dep := range out[i].DependsOn() {
			if _, dup := seen[dep]; !dup {
				seen[dep] = struct{}{}
				out = append(out, dep)
			}
		}
	}
	return out
}
