package cli

import (
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	buildpkg "github.com/jbigot/pkg-builder/internal/build"
	"github.com/jbigot/pkg-builder/internal/cancel"
	"github.com/jbigot/pkg-builder/internal/config"
	"github.com/jbigot/pkg-builder/internal/distro"
	"github.com/jbigot/pkg-builder/internal/fetch"
	"github.com/jbigot/pkg-builder/internal/gpg"
	"github.com/jbigot/pkg-builder/internal/repo"
	"github.com/jbigot/pkg-builder/internal/run"
)

// buildDistrib runs the whole pipeline for one output distribution: node
// construction, linking, scheduling, and the final publish.
func buildDistrib(opts *options, cfg *config.File, id string, bus *cancel.Bus,
	runner *run.Runner, downloader *fetch.Downloader, jobs int) error {

	distrib := cfg.Distribs[id]
	logrus.Infof("building distribution config %s", id)

	releases, err := distrib.Releases(opts.distributions)
	if err != nil {
		return err
	}
	if len(releases) == 0 {
		logrus.Warnf("%s: no release matches the -D filters, skipping", id)
		return nil
	}

	gpgCtx, err := gpg.NewContext(runner, distrib.GPG.File, distrib.GPG.ID, distrib.GPG.UID, opts.passphrase)
	if err != nil {
		return err
	}
	defer gpgCtx.Close()

	localRepo := repo.NewBuilder(runner, gpgCtx, repo.Options{
		Name:     distrib.Repository.Name,
		Registry: cfg.Registry,
	})
	env := &buildpkg.Env{
		Bus:        bus,
		Runner:     runner,
		GPG:        gpgCtx,
		Downloader: downloader,
		Registry:   cfg.Registry,
		LocalRepo: func(dest string, sources []buildpkg.RepoSource) error {
			return localRepo.Build(dest, repoSources(sources))
		},
	}

	nodes, err := makeNodes(env, cfg, releases)
	if err != nil {
		return err
	}
	if err := buildpkg.Link(nodes); err != nil {
		return err
	}

	workRoot, err := os.MkdirTemp("", "pkg-builder.")
	if err != nil {
		return err
	}

	scheduler := buildpkg.NewScheduler(bus, jobs)
	if err := scheduler.Run(nodes, workRoot); err != nil {
		if opts.interactive {
			promptCleanup(workRoot)
		} else {
			logrus.Warnf("work directory kept for inspection: %s", workRoot)
		}
		return err
	}

	finalRepo := repo.NewBuilder(runner, gpgCtx, repo.Options{
		Name:        distrib.Repository.Name,
		Description: distrib.Repository.Description,
		URL:         distrib.Repository.URL,
		Registry:    cfg.Registry,
	})
	if err := finalRepo.PublishFinal(distrib.Repository.Path, finishedSources(nodes)); err != nil {
		return err
	}

	return os.RemoveAll(workRoot)
}

// makeNodes constructs one node per (package, release), leaving out the
// pairs disabled by configuration.
func makeNodes(env *buildpkg.Env, cfg *config.File, releases []*distro.Release) ([]buildpkg.Node, error) {
	names := make([]string, 0, len(cfg.Packages))
	for name := range cfg.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	var nodes []buildpkg.Node
	for _, rel := range releases {
		for _, name := range names {
			pkg := cfg.Packages[name]
			disabled, err := pkg.Disabled(rel)
			if err != nil {
				return nil, err
			}
			if disabled {
				logrus.Debugf("%s is disabled on %s", name, rel)
				continue
			}
			node, err := buildpkg.DetectNode(env, cfg.Sources, name, rel, buildpkg.NodeOptions{
				OrigURL:     pkg.Orig,
				Parallelism: pkg.Parallelism,
			})
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// repoSources converts the build package's source shape into the repo one.
func repoSources(in []buildpkg.RepoSource) []repo.Source {
	out := make([]repo.Source, 0, len(in))
	for _, s := range in {
		out = append(out, repo.Source{Release: s.Release, Dir: s.Dir})
	}
	return out
}

// finishedSources collects the artifact directories of every finished node.
// Skipped nodes have no artifacts and are left out.
func finishedSources(nodes []buildpkg.Node) []repo.Source {
	var out []repo.Source
	for _, n := range nodes {
		if n.State() == buildpkg.StateFinished && n.OutDir() != "" {
			out = append(out, repo.Source{Release: n.Release(), Dir: n.OutDir()})
		}
	}
	return out
}
