package config

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/jbigot/pkg-builder/internal/distro"
	"github.com/jbigot/pkg-builder/internal/models"
)

// DefaultPath is the configuration file used when none is given on the
// command line.
const DefaultPath = "./build.conf"

// File is the whole build configuration.
type File struct {
	// Registry prefixes every builder container image name.
	Registry string `yaml:"registry,omitempty"`
	// Sources is the directory holding one subdirectory per source package.
	Sources  string             `yaml:"sources,omitempty"`
	Distribs map[string]Distrib `yaml:"distribs"`
	Packages map[string]Package `yaml:"packages"`
}

// GPG points at the signing key material for one distribution config.
type GPG struct {
	File string `yaml:"file"`
	ID   string `yaml:"id,omitempty"`
	UID  string `yaml:"uid,omitempty"`
}

// Repository describes the published repository for one distribution config.
type Repository struct {
	Path        string `yaml:"path"`
	URL         string `yaml:"url,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Distrib is one output distribution: key material, the releases to build
// for, and where to publish.
type Distrib struct {
	GPG        GPG                 `yaml:"gpg"`
	Versions   map[string][]string `yaml:"versions"`
	Repository Repository          `yaml:"repository"`
}

// Package is one source package declaration.
type Package struct {
	// Orig is a URL template for the upstream tarball, expanded with
	// {package} and {version}.
	Orig string `yaml:"orig,omitempty"`
	// Disable lists release selectors the package must not be built for,
	// keyed by distribution id.
	Disable map[string][]string `yaml:"disable,omitempty"`
	// Parallelism caps the build concurrency inside the container.
	Parallelism int `yaml:"parallelism,omitempty"`
}

// Load reads and validates the configuration file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ConfigError{Detail: "reading " + path, Err: err}
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, &models.ConfigError{Detail: "parsing " + path, Err: err}
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	f.applyDefaults()
	return &f, nil
}

func (f *File) validate() error {
	if len(f.Distribs) == 0 {
		return &models.ConfigError{Detail: "no distribs declared"}
	}
	for id, d := range f.Distribs {
		if d.GPG.File == "" {
			return &models.ConfigError{Detail: fmt.Sprintf("distribs.%s.gpg.file is required", id)}
		}
		if len(d.Versions) == 0 {
			return &models.ConfigError{Detail: fmt.Sprintf("distribs.%s.versions is empty", id)}
		}
		for vid := range d.Versions {
			if distro.ByID(vid) == nil {
				return &models.ConfigError{Detail: fmt.Sprintf("distribs.%s.versions: unknown distribution %q", id, vid)}
			}
		}
		if d.Repository.Path == "" {
			return &models.ConfigError{Detail: fmt.Sprintf("distribs.%s.repository.path is required", id)}
		}
	}
	for name, p := range f.Packages {
		for vid := range p.Disable {
			if distro.ByID(vid) == nil {
				return &models.ConfigError{Detail: fmt.Sprintf("packages.%s.disable: unknown distribution %q", name, vid)}
			}
		}
	}
	return nil
}

func (f *File) applyDefaults() {
	if f.Registry == "" {
		f.Registry = "pdidev"
	}
	if f.Sources == "" {
		f.Sources = "."
	}
	for name, p := range f.Packages {
		if p.Parallelism <= 0 {
			p.Parallelism = runtime.NumCPU()
			f.Packages[name] = p
		}
	}
	for id, d := range f.Distribs {
		if d.Repository.Name == "" {
			d.Repository.Name = id
			f.Distribs[id] = d
		}
	}
}

// Releases resolves the distrib's version selectors into concrete releases
// and applies the -D command line filters. An empty filter list keeps
// everything.
func (d Distrib) Releases(filters []string) ([]*distro.Release, error) {
	var out []*distro.Release
	for id, selectors := range d.Versions {
		dist := distro.ByID(id)
		releases, err := dist.ResolveSelectors(selectors)
		if err != nil {
			return nil, &models.ConfigError{Detail: "resolving versions for " + id, Err: err}
		}
		for _, r := range releases {
			if matchAnyFilter(r, filters) {
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID() < out[j].UID() })
	return out, nil
}

// Disabled reports whether the package is disabled for the given release.
func (p Package) Disabled(rel *distro.Release) (bool, error) {
	selectors, ok := p.Disable[rel.DistroID()]
	if !ok {
		return false, nil
	}
	window, err := rel.Distro().ResolveSelectors(selectors)
	if err != nil {
		return false, &models.ConfigError{Detail: "resolving disable window", Err: err}
	}
	for _, r := range window {
		if r == rel {
			return true, nil
		}
	}
	return false, nil
}

func matchAnyFilter(r *distro.Release, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if r.MatchFilter(f) {
			return true
		}
	}
	return false
}
