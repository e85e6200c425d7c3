package build

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jbigot/pkg-builder/internal/cancel"
	"github.com/jbigot/pkg-builder/internal/distro"
	"github.com/jbigot/pkg-builder/internal/fetch"
	"github.com/jbigot/pkg-builder/internal/gpg"
	"github.com/jbigot/pkg-builder/internal/run"
)

// State is a node's position in the build lifecycle.
type State int

const (
	StatePending State = iota
	StateBuilding
	StateFinished
	StateFailed
	StateSkipped
	StateCancelled
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateBuilding:
		return "building"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SourceKind discriminates the packaging metadata found in a source
// directory.
type SourceKind int

const (
	SourceAbsent SourceKind = iota
	SourceDebianQuilt
	SourceDebianNative
	SourceRPM
)

// RepoSource is one finished node's artifact directory, handed to the repo
// builders.
type RepoSource struct {
	Release *distro.Release
	Dir     string
}

// LocalRepoFunc builds a transient signed local repository at dest from the
// given artifact sources.
type LocalRepoFunc func(dest string, sources []RepoSource) error

// Env carries the collaborators a node build needs.
type Env struct {
	Bus        *cancel.Bus
	Runner     *run.Runner
	GPG        *gpg.Context
	Downloader *fetch.Downloader
	Registry   string
	LocalRepo  LocalRepoFunc
}

// Node is one source package on one release: the scheduler's unit of work.
//
// State and dependency fields are written by the scheduler goroutine only;
// workers observe them through the scheduler's channels, so no further
// locking is needed.
type Node interface {
	Name() string
	Release() *distro.Release
	Kind() SourceKind
	// Provides returns the binary package names this node will emit.
	Provides() []string
	// Requires returns the binary package names needed at build time.
	Requires() []string
	DependsOn() []Node
	// Resolved reports whether the linker has rewired DependsOn. An
	// unresolved node is never ready.
	Resolved() bool
	State() State
	// OutDir holds the captured signed artifacts once the state is
	// finished, and is empty for skipped nodes.
	OutDir() string
	// Build runs the per-release pipeline under workRoot.
	Build(workRoot string) error

	setDependsOn([]Node)
	setState(State)
	setOutDir(string)
}

// nodeBase carries the fields shared by every node variant.
type nodeBase struct {
	name        string
	release     *distro.Release
	kind        SourceKind
	provides    []string
	requires    []string
	dependsOn   []Node
	resolved    bool
	state       State
	outdir      string
	parallelism int
	env         *Env
}

func (n *nodeBase) Name() string             { return n.name }
func (n *nodeBase) Release() *distro.Release { return n.release }
func (n *nodeBase) Kind() SourceKind         { return n.kind }
func (n *nodeBase) Provides() []string       { return n.provides }
func (n *nodeBase) Requires() []string       { return n.requires }
func (n *nodeBase) DependsOn() []Node        { return n.dependsOn }
func (n *nodeBase) Resolved() bool           { return n.resolved }
func (n *nodeBase) State() State             { return n.state }
func (n *nodeBase) OutDir() string           { return n.outdir }

func (n *nodeBase) setDependsOn(deps []Node) { n.dependsOn = deps; n.resolved = true }
func (n *nodeBase) setState(s State)         { n.state = s }
func (n *nodeBase) setOutDir(dir string)     { n.outdir = dir }

func (n *nodeBase) label() string {
	return n.name + " on " + n.release.String()
}

// localRepoSources collects the artifact directories of the node's
// transitive dependency closure, the node itself excluded. Only finished
// producers contribute.
func (n *nodeBase) localRepoSources(self Node) []RepoSource {
	var sources []RepoSource
	for _, dep := range Closure(self) {
		if dep == self || dep.State() != StateFinished || dep.OutDir() == "" {
			continue
		}
		sources = append(sources, RepoSource{Release: dep.Release(), Dir: dep.OutDir()})
	}
	return sources
}

// absentNode is a declared package whose source directory carries neither
// debian/control nor a spec file.
type absentNode struct {
	nodeBase
}

func (n *absentNode) Build(string) error {
	return nil
}

// NodeOptions carries the per-package configuration a node needs at
// construction.
type NodeOptions struct {
	OrigURL     string
	Parallelism int
}

// DetectNode inspects <sources>/<name> and constructs the matching node
// variant for one release.
func DetectNode(env *Env, sourcesRoot, name string, release *distro.Release, opts NodeOptions) (Node, error) {
	srcDir := filepath.Join(sourcesRoot, name)
	base := nodeBase{
		name:        name,
		release:     release,
		parallelism: opts.Parallelism,
		env:         env,
	}

	if _, err := os.Stat(filepath.Join(srcDir, "debian", "control")); err == nil {
		return newDebNode(base, srcDir, opts.OrigURL)
	}
	if _, err := os.Stat(filepath.Join(srcDir, name+".spec")); err == nil {
		return newRPMNode(base, filepath.Join(srcDir, name+".spec"))
	}
	base.kind = SourceAbsent
	return &absentNode{nodeBase: base}, nil
}

// run0 builds a run.Cmd from a bare argv.
func run0(argv ...string) run.Cmd {
	return run.Cmd{Argv: argv}
}

// workDirName yields the per-node scratch directory name.
func workDirName(name string, release *distro.Release, flavor string) string {
	return fmt.Sprintf("%s.%s.%s-build", name, release.UID(), flavor)
}
