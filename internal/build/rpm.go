package build

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/gpg"
	"github.com/jbigot/pkg-builder/internal/utils"
)

// rpmNode builds an RPM source package for one release.
type rpmNode struct {
	nodeBase
	specPath string
}

func newRPMNode(base nodeBase, specPath string) (*rpmNode, error) {
	base.kind = SourceRPM
	n := &rpmNode{nodeBase: base, specPath: specPath}

	requires, err := n.querySpec("--buildrequires")
	if err != nil {
		return nil, err
	}
	provides, err := n.querySpec("--provides")
	if err != nil {
		return nil, err
	}
	n.requires = requires
	n.provides = provides
	return n, nil
}

// querySpec enumerates one rpmspec query; each line is trimmed down to the
// bare name by stripping everything from the first parenthesis or space.
func (n *rpmNode) querySpec(what string) ([]string, error) {
	out, err := n.env.Runner.Output(run0("rpmspec", "-q", what, n.specPath))
	if err != nil {
		return nil, err
	}
	var names []string
	seen := map[string]struct{}{}
	for _, line := range strings.Split(out, "\n") {
		name := bareName(line)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names, nil
}

// bareName strips a dependency line at the first '(' or space.
func bareName(line string) string {
	name := strings.TrimSpace(line)
	if i := strings.IndexAny(name, "( \t"); i >= 0 {
		name = name[:i]
	}
	return name
}

// Build runs the RPM pipeline: stage spec and sources, assemble the local
// repository, build inside the builder container, resign, and capture the
// artifacts.
func (n *rpmNode) Build(workRoot string) error {
	if err := n.env.Bus.Check(); err != nil {
		return err
	}
	logrus.Infof("building %s", n.label())

	work := filepath.Join(workRoot, workDirName(n.name, n.release, "rpm"))
	outDir := filepath.Join(work, "output")
	pkgDir := filepath.Join(work, "pkg")
	repoDir := filepath.Join(work, "repo")
	for _, dir := range []string{outDir, pkgDir, repoDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
	}

	if err := utils.CopyFile(n.specPath, filepath.Join(pkgDir, filepath.Base(n.specPath))); err != nil {
		return err
	}

	if err := n.env.LocalRepo(repoDir, n.localRepoSources(n)); err != nil {
		return err
	}

	if err := n.fetchSources(pkgDir); err != nil {
		return err
	}

	if err := n.runBuilder(pkgDir, repoDir); err != nil {
		return err
	}

	if err := os.RemoveAll(repoDir); err != nil {
		return err
	}

	if err := n.resign(pkgDir); err != nil {
		return err
	}

	if err := n.capture(pkgDir, outDir); err != nil {
		return err
	}
	n.setOutDir(outDir)
	return n.env.Bus.Check()
}

var sourceLine = regexp.MustCompile(`(?i)^\s*source[0-9]*\s*:\s*(\S+)`)

// sourceURLs expands the spec and extracts every SourceN URL.
func (n *rpmNode) sourceURLs() ([]string, error) {
	out, err := n.env.Runner.Output(run0("rpmspec", "-P", n.specPath))
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, line := range strings.Split(out, "\n") {
		if m := sourceLine.FindStringSubmatch(line); m != nil {
			urls = append(urls, m[1])
		}
	}
	return urls, nil
}

// fetchSources downloads every source URL into pkgDir.
func (n *rpmNode) fetchSources(pkgDir string) error {
	urls, err := n.sourceURLs()
	if err != nil {
		return err
	}
	for _, raw := range urls {
		if err := n.env.Downloader.Download(raw, filepath.Join(pkgDir, sourceFileName(raw))); err != nil {
			return err
		}
	}
	return nil
}

// sourceFileName picks the local name for a source URL: the value of the
// last name=value query pair when present, else the path basename.
func sourceFileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}
	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		for i := len(pairs) - 1; i >= 0; i-- {
			if _, value, found := strings.Cut(pairs[i], "="); found && value != "" {
				return value
			}
		}
	}
	return path.Base(u.Path)
}

// runBuilder launches the containerized builder; the release subtree of the
// local repo is what the container sees.
func (n *rpmNode) runBuilder(pkgDir, repoDir string) error {
	if err := utils.EnsureDir(filepath.Join(repoDir, n.release.NumericID)); err != nil {
		return err
	}
	image := fmt.Sprintf("%s/%s_builder:%s", n.env.Registry, n.release.DistroID(), n.release.NumericID)
	return n.env.Runner.Run(run0("podman", "run", "--rm",
		"-v", pkgDir+":/src",
		"-v", filepath.Join(repoDir, n.release.NumericID)+":/localrepo",
		"--tmpfs", "/tmp:exec",
		"--shm-size", "5g",
		image,
	))
}

// resign signs every produced rpm in place with the context key.
func (n *rpmNode) resign(pkgDir string) error {
	rpms, err := filepath.Glob(filepath.Join(pkgDir, "*.rpm"))
	if err != nil {
		return err
	}
	for _, file := range rpms {
		argv := []string{"rpmsign"}
		argv = append(argv, gpg.Splice{PrefixArgs: []string{"--define"}, Prefix: "_gpg_bin "}.Apply(n.env.GPG.WrapperPath)...)
		argv = append(argv, gpg.Splice{PrefixArgs: []string{"--define"}, Prefix: "__gpg "}.Apply(n.env.GPG.WrapperPath)...)
		argv = append(argv, gpg.Splice{PrefixArgs: []string{"--define"}, Prefix: "_gpg_home "}.Apply(n.env.GPG.Home)...)
		argv = append(argv, n.env.GPG.KeyIDArgs(gpg.Splice{PrefixArgs: []string{"--define"}, Prefix: "_gpg_name "})...)
		argv = append(argv, "--resign", file)
		if err := n.env.Runner.Run(run0(argv...)); err != nil {
			return err
		}
	}
	return nil
}

// capture moves every rpm into outDir and removes pkgDir.
func (n *rpmNode) capture(pkgDir, outDir string) error {
	rpms, err := filepath.Glob(filepath.Join(pkgDir, "*.rpm"))
	if err != nil {
		return err
	}
	for _, file := range rpms {
		if err := os.Rename(file, filepath.Join(outDir, filepath.Base(file))); err != nil {
			return err
		}
	}
	return os.RemoveAll(pkgDir)
}
