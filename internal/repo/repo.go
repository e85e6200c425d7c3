package repo

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/jbigot/pkg-builder/internal/distro"
	"github.com/jbigot/pkg-builder/internal/gpg"
	"github.com/jbigot/pkg-builder/internal/run"
)

// Source is one build's artifact directory for one release.
type Source struct {
	Release *distro.Release
	Dir     string
}

// Options describe the repository being assembled. URL is empty for the
// transient per-build local repositories and set for the final publish.
type Options struct {
	Name        string
	Description string
	URL         string
	Registry    string
}

// Builder assembles a signed binary package repository from artifact
// directories: the aptly layout for Debian-family releases and the
// repodata layout for Red-Hat-family ones. The same engine serves the
// per-node local repositories and the final publish.
type Builder struct {
	runner *run.Runner
	gpg    *gpg.Context
	opts   Options
}

// NewBuilder creates a repository builder.
func NewBuilder(runner *run.Runner, gpgCtx *gpg.Context, opts Options) *Builder {
	if opts.Description == "" {
		opts.Description = opts.Name + " package repository"
	}
	return &Builder{runner: runner, gpg: gpgCtx, opts: opts}
}

// Build produces the repository at dest from the given sources. Repeated
// invocations over the same inputs regenerate the same layout, signatures
// aside.
func (b *Builder) Build(dest string, sources []Source) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	var debs, rpms []Source
	for _, s := range sources {
		switch {
		case s.Release.Like("debian"):
			debs = append(debs, s)
		case s.Release.Like("fedora"):
			rpms = append(rpms, s)
		}
	}

	if len(debs) > 0 {
		if err := b.buildDebian(dest, debs); err != nil {
			return err
		}
	}
	if len(rpms) > 0 {
		if err := b.buildRPM(dest, rpms); err != nil {
			return err
		}
	}

	if b.opts.URL != "" {
		if err := b.writeReadme(dest, debs, rpms); err != nil {
			return err
		}
	}
	return nil
}

// groupByRelease buckets sources per release, ordered by uid for stable
// layouts.
func groupByRelease(sources []Source) ([]*distro.Release, map[string][]Source) {
	buckets := map[string][]Source{}
	byUID := map[string]*distro.Release{}
	for _, s := range sources {
		uid := s.Release.UID()
		buckets[uid] = append(buckets[uid], s)
		byUID[uid] = s.Release
	}
	uids := make([]string, 0, len(byUID))
	for uid := range byUID {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	releases := make([]*distro.Release, 0, len(uids))
	for _, uid := range uids {
		releases = append(releases, byUID[uid])
	}
	return releases, buckets
}

// exportKey writes the armored public key to path.
func (b *Builder) exportKey(path string) error {
	armored, err := b.gpg.ExportArmoredPublicKey()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, armored, 0o644)
}
