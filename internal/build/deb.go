package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/fetch"
	"github.com/jbigot/pkg-builder/internal/gpg"
	"github.com/jbigot/pkg-builder/internal/models"
	"github.com/jbigot/pkg-builder/internal/utils"
)

// debNode builds a Debian-family source package for one release.
type debNode struct {
	nodeBase
	srcDir  string
	origURL string
}

func newDebNode(base nodeBase, srcDir, origURL string) (*debNode, error) {
	content, err := os.ReadFile(filepath.Join(srcDir, "debian", "control"))
	if err != nil {
		return nil, err
	}
	control := parseControl(string(content))
	base.provides = control.binaryPackages()
	base.requires = control.buildDependencies()
	// kind is refined to quilt or native by dpkg-source at build time
	base.kind = SourceDebianQuilt
	return &debNode{nodeBase: base, srcDir: srcDir, origURL: origURL}, nil
}

// Build runs the Debian pipeline: stage the source with a rebuild changelog
// entry, assemble build dependencies and the local repository, build inside
// the builder container, sign, and capture the artifacts.
func (n *debNode) Build(workRoot string) error {
	if err := n.env.Bus.Check(); err != nil {
		return err
	}
	logrus.Infof("building %s", n.label())

	work := filepath.Join(workRoot, workDirName(n.name, n.release, "deb"))
	outDir := filepath.Join(work, "output")
	pkgDir := filepath.Join(work, "pkg")
	depsDir := filepath.Join(work, "deps")
	repoDir := filepath.Join(work, "repo")
	for _, dir := range []string{outDir, pkgDir, depsDir, repoDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
	}

	native, err := n.sourceFormat()
	if err != nil {
		return err
	}
	if native {
		n.kind = SourceDebianNative
	}

	top, changelog, err := n.rebuildChangelog()
	if err != nil {
		return err
	}

	treeDir := filepath.Join(pkgDir, top.Package+"-"+top.UpstreamVersion())
	if native {
		if err := utils.CopyTree(n.srcDir, treeDir); err != nil {
			return err
		}
	} else {
		if err := utils.CopyTree(filepath.Join(n.srcDir, "debian"), filepath.Join(treeDir, "debian")); err != nil {
			return err
		}
		if err := n.fetchOrig(pkgDir, top); err != nil {
			return err
		}
	}
	if err := os.WriteFile(filepath.Join(treeDir, "debian", "changelog"), []byte(changelog), 0o644); err != nil {
		return err
	}

	if err := n.makeBuildDeps(treeDir, depsDir); err != nil {
		return err
	}

	if err := n.env.LocalRepo(repoDir, n.localRepoSources(n)); err != nil {
		return err
	}

	if err := n.runBuilder(pkgDir, depsDir, repoDir); err != nil {
		return err
	}

	if err := os.RemoveAll(depsDir); err != nil {
		return err
	}
	if err := os.RemoveAll(repoDir); err != nil {
		return err
	}

	if err := n.sign(pkgDir); err != nil {
		return err
	}

	if err := captureArtifacts(pkgDir, outDir); err != nil {
		return err
	}
	n.setOutDir(outDir)
	return n.env.Bus.Check()
}

// sourceFormat queries dpkg-source and reports whether the tree is native.
// Anything but 3.0 quilt or native is rejected.
func (n *debNode) sourceFormat() (bool, error) {
	out, err := n.env.Runner.Output(run0("dpkg-source", "--print-format", n.srcDir))
	if err != nil {
		return false, err
	}
	switch format := strings.TrimSpace(out); format {
	case "3.0 (quilt)":
		return false, nil
	case "3.0 (native)":
		return true, nil
	default:
		return false, &models.ConfigError{
			Detail: fmt.Sprintf("unsupported source format %q for %s", format, n.label()),
		}
	}
}

// rebuildChangelog parses the source changelog and prepends the automated
// rebuild entry.
func (n *debNode) rebuildChangelog() (*ChangelogEntry, string, error) {
	raw, err := os.ReadFile(filepath.Join(n.srcDir, "debian", "changelog"))
	if err != nil {
		return nil, "", err
	}
	top, err := parseChangelogTop(string(raw))
	if err != nil {
		return nil, "", err
	}
	now := time.Now()
	version := rebuildVersion(top, n.release.NumericID, now)
	content := prependRebuildEntry(string(raw), top, version,
		n.release.Codename, n.release.String(), n.env.GPG.UID, now)
	return top, content, nil
}

// fetchOrig downloads the upstream tarball and names it by sniffing the
// archive format from the file content.
func (n *debNode) fetchOrig(pkgDir string, top *ChangelogEntry) error {
	if n.origURL == "" {
		return &models.ConfigError{Detail: "quilt package " + n.name + " has no orig url"}
	}
	url := expandOrigURL(n.origURL, top.Package, top.UpstreamVersion())
	tmp := filepath.Join(pkgDir, top.Package+"_"+top.UpstreamVersion()+".orig.download")
	if err := n.env.Downloader.Download(url, tmp); err != nil {
		return err
	}
	ext, err := fetch.SniffExt(tmp)
	if err != nil {
		return err
	}
	final := filepath.Join(pkgDir, top.Package+"_"+top.UpstreamVersion()+".orig."+ext)
	return os.Rename(tmp, final)
}

// makeBuildDeps generates the build dependency metapackage inside depsDir.
func (n *debNode) makeBuildDeps(treeDir, depsDir string) error {
	cmd := run0("mk-build-deps",
		"-P"+n.release.DistroID()+","+n.release.Codename,
		filepath.Join(treeDir, "debian", "control"))
	cmd.Dir = depsDir
	return n.env.Runner.Run(cmd)
}

// runBuilder launches the containerized builder with the staged mounts.
func (n *debNode) runBuilder(pkgDir, depsDir, repoDir string) error {
	image := fmt.Sprintf("%s/%s_builder:%s", n.env.Registry, n.release.DistroID(), n.release.Codename)
	return n.env.Runner.Run(run0("podman", "run", "--rm",
		"-v", pkgDir+":/src",
		"-v", depsDir+":/deps",
		"-v", repoDir+":/localrepo",
		"--tmpfs", "/tmp:exec",
		"--shm-size", "5g",
		image,
		fmt.Sprintf("-j%d", n.parallelism),
		"-sa",
		"-P"+n.release.DistroID()+","+n.release.Codename,
	))
}

// sign runs debsign over every produced changes file, from the source
// tree's parent so the relative references resolve.
func (n *debNode) sign(pkgDir string) error {
	changes, err := filepath.Glob(filepath.Join(pkgDir, "*.changes"))
	if err != nil {
		return err
	}
	argv := []string{"debsign", "--no-conf"}
	argv = append(argv, gpg.Splice{Prefix: "-p"}.Apply(n.env.GPG.WrapperPath)...)
	argv = append(argv, n.env.GPG.KeyIDArgs(gpg.Splice{Prefix: "-k"})...)
	argv = append(argv, "--debs-dir", pkgDir)
	for _, c := range changes {
		argv = append(argv, filepath.Base(c))
	}
	cmd := run0(argv...)
	cmd.Dir = pkgDir
	return n.env.Runner.Run(cmd)
}

// captureArtifacts moves every top-level file of pkgDir into outDir and
// removes pkgDir.
func captureArtifacts(pkgDir, outDir string) error {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Rename(filepath.Join(pkgDir, e.Name()), filepath.Join(outDir, e.Name())); err != nil {
			return err
		}
	}
	return os.RemoveAll(pkgDir)
}

// expandOrigURL substitutes the {package} and {version} placeholders.
func expandOrigURL(template, pkg, version string) string {
	url := strings.ReplaceAll(template, "{package}", pkg)
	return strings.ReplaceAll(url, "{version}", version)
}
