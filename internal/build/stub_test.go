package build

import (
	"github.com/jbigot/pkg-builder/internal/distro"
)

// stubNode stands in for a real package node in linker and scheduler tests.
type stubNode struct {
	nodeBase
	buildFn func(n *stubNode, workRoot string) error
}

func (n *stubNode) Build(workRoot string) error {
	if n.buildFn == nil {
		return nil
	}
	return n.buildFn(n, workRoot)
}

func newStub(name string, rel *distro.Release, provides, requires []string,
	buildFn func(n *stubNode, workRoot string) error) *stubNode {
	return &stubNode{
		nodeBase: nodeBase{
			name:     name,
			release:  rel,
			kind:     SourceRPM,
			provides: provides,
			requires: requires,
		},
		buildFn: buildFn,
	}
}

func newAbsentStub(name string, rel *distro.Release) *absentNode {
	return &absentNode{nodeBase: nodeBase{name: name, release: rel, kind: SourceAbsent}}
}

func fedora38() *distro.Release {
	return distro.ByID("fedora").Find("38")[0]
}

func bookworm() *distro.Release {
	return distro.ByID("debian").Find("bookworm")[0]
}
