package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sassoftware/go-rpmutils"
	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/distro"
	"github.com/jbigot/pkg-builder/internal/run"
	"github.com/jbigot/pkg-builder/internal/utils"
)

// buildRPM assembles the Red-Hat-family side of the repository: a
// <numeric_id>/<arch>/ tree of hardlinked rpms, indexed by createrepo in
// the rpm_tools container and signed at the repodata root.
func (b *Builder) buildRPM(dest string, sources []Source) error {
	releases, buckets := groupByRelease(sources)
	for _, rel := range releases {
		relDir := filepath.Join(dest, rel.NumericID)
		for _, s := range buckets[rel.UID()] {
			if err := b.linkRPMs(s.Dir, relDir); err != nil {
				return err
			}
		}
		if err := b.index(relDir); err != nil {
			return err
		}
		if err := b.signRepodata(relDir); err != nil {
			return err
		}
		if err := b.writeRepoFile(relDir, rel); err != nil {
			return err
		}
	}

	keyPath := filepath.Join(dest, b.opts.Name+".key")
	if err := b.exportKey(keyPath); err != nil {
		return err
	}
	if b.opts.URL == "" {
		// local repos are consumed via the /localrepo bind mount; give
		// every release tree its own key copy so gpgkey resolves inside
		// the container
		for _, rel := range releases {
			err := utils.LinkOrCopy(keyPath, filepath.Join(dest, rel.NumericID, b.opts.Name+".key"))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// linkRPMs hardlinks every rpm of one artifact directory into the
// per-arch subtree of the release directory.
func (b *Builder) linkRPMs(srcDir, relDir string) error {
	rpms, err := filepath.Glob(filepath.Join(srcDir, "*.rpm"))
	if err != nil {
		return err
	}
	for _, file := range rpms {
		arch := archFromFileName(file)
		if arch == "" {
			return fmt.Errorf("cannot derive architecture from %s", filepath.Base(file))
		}
		b.logHeader(file, arch)
		if err := utils.LinkOrCopy(file, filepath.Join(relDir, arch, filepath.Base(file))); err != nil {
			return err
		}
	}
	return nil
}

// archFromFileName returns the second-to-last dotted suffix of an rpm file
// name (x86_64, noarch, src).
func archFromFileName(file string) string {
	parts := strings.Split(filepath.Base(file), ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// logHeader reads the rpm header for the publish log and flags filenames
// whose arch does not match the header.
func (b *Builder) logHeader(file, arch string) {
	f, err := os.Open(file)
	if err != nil {
		return
	}
	defer f.Close()
	pkg, err := rpmutils.ReadRpm(f)
	if err != nil {
		logrus.Warnf("%s: unreadable rpm header: %v", filepath.Base(file), err)
		return
	}
	nevra, err := pkg.Header.GetNEVRA()
	if err != nil {
		return
	}
	logrus.Debugf("publishing %s into %s/", nevra, arch)
	if headerArch, err := pkg.Header.GetString(rpmutils.ARCH); err == nil &&
		arch != "src" && headerArch != arch {
		logrus.Warnf("%s: filename arch %s != header arch %s", filepath.Base(file), arch, headerArch)
	}
}

// index runs createrepo inside the rpm_tools container as the invoking
// uid/gid so the repodata ends up owned by the caller.
func (b *Builder) index(relDir string) error {
	return b.runner.Run(run.Cmd{Argv: []string{
		"podman", "run", "--rm",
		"-v", relDir + ":/repodir",
		"--user", fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		b.opts.Registry + "/rpm_tools",
		"createrepo_c", "/repodir",
	}})
}

// signRepodata produces the detached armored signature next to repomd.xml.
func (b *Builder) signRepodata(relDir string) error {
	repomd := filepath.Join(relDir, "repodata", "repomd.xml")
	asc := repomd + ".asc"
	os.Remove(asc)
	return b.runner.Run(run.Cmd{Argv: []string{
		b.gpg.WrapperPath,
		"--detach-sign", "--armor",
		"--local-user", b.gpg.KeyID,
		"--output", asc,
		repomd,
	}})
}

// writeRepoFile emits the dnf/yum repo definition for one release.
func (b *Builder) writeRepoFile(relDir string, rel *distro.Release) error {
	baseURL := "file:///localrepo"
	gpgKey := "file:///localrepo/" + b.opts.Name + ".key"
	if b.opts.URL != "" {
		root := strings.TrimSuffix(b.opts.URL, "/")
		baseURL = root + "/" + rel.NumericID + "/"
		gpgKey = root + "/" + b.opts.Name + ".key"
	}

	var bld strings.Builder
	fmt.Fprintf(&bld, "[%s]\n", b.opts.Name)
	fmt.Fprintf(&bld, "name=%s\n", b.opts.Description)
	bld.WriteString("type=rpm-md\n")
	fmt.Fprintf(&bld, "baseurl=%s\n", baseURL)
	bld.WriteString("gpgcheck=1\n")
	bld.WriteString("repo_gpgcheck=1\n")
	fmt.Fprintf(&bld, "gpgkey=%s\n", gpgKey)
	bld.WriteString("enabled=1\n")
	return os.WriteFile(filepath.Join(relDir, b.opts.Name+".repo"), []byte(bld.String()), 0o644)
}
