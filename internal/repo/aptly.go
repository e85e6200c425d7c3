package repo

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/distro"
	"github.com/jbigot/pkg-builder/internal/run"
)

// buildDebian assembles the Debian-family side of the repository with
// aptly: one repo per release uid (plus one per suite alias), published to
// a filesystem endpoint rooted at dest.
func (b *Builder) buildDebian(dest string, sources []Source) error {
	scratch, err := os.MkdirTemp("", "aptly.")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	confPath, err := writeAptlyConf(scratch, dest)
	if err != nil {
		return err
	}

	releases, buckets := groupByRelease(sources)
	for _, rel := range releases {
		if err := b.publishRelease(confPath, rel, buckets[rel.UID()]); err != nil {
			return err
		}
	}

	if b.opts.URL != "" {
		if err := b.exportKey(filepath.Join(dest, b.opts.Name+"-archive-keyring.gpg")); err != nil {
			return err
		}
	}
	return nil
}

// publishRelease creates the aptly repos for one release, includes every
// artifact directory, and publishes them to the default endpoint.
func (b *Builder) publishRelease(confPath string, rel *distro.Release, sources []Source) error {
	type aptlyRepo struct {
		name         string
		distribution string
	}
	repos := []aptlyRepo{{name: rel.UID(), distribution: rel.Codename}}
	if rel.Suite != "" {
		repos = append(repos, aptlyRepo{name: rel.UID() + ":" + rel.Suite, distribution: rel.Suite})
	}

	for _, r := range repos {
		logrus.Debugf("aptly repo %s (%s)", r.name, r.distribution)
		err := b.aptly(confPath, "repo", "create",
			"-distribution="+r.distribution, r.name)
		if err != nil {
			return err
		}
		for _, s := range sources {
			err := b.aptly(confPath, "repo", "include",
				"-keyring="+b.gpg.KeyringPath(),
				"-no-remove-files",
				"-repo="+r.name,
				s.Dir)
			if err != nil {
				return err
			}
		}

		argv := []string{"publish", "repo",
			"-keyring=" + b.gpg.KeyringPath(),
			"-gpg-key=" + b.gpg.ShortKeyID(),
			"-passphrase=" + b.gpg.Passphrase,
		}
		if b.opts.URL != "" {
			argv = append(argv,
				"-label="+b.opts.Name,
				"-origin="+b.opts.Name)
		}
		argv = append(argv, r.name, "filesystem:default:.")
		if err := b.aptly(confPath, argv...); err != nil {
			return err
		}
	}
	return nil
}

// aptly runs one aptly command against the private config.
func (b *Builder) aptly(confPath string, args ...string) error {
	argv := append([]string{"aptly", "-config=" + confPath}, args...)
	return b.runner.Run(run.Cmd{Argv: argv})
}

// writeAptlyConf points aptly's root into the scratch directory and its
// default filesystem publish endpoint at dest.
func writeAptlyConf(scratch, dest string) (string, error) {
	conf := map[string]any{
		"rootDir": filepath.Join(scratch, "root"),
		"FileSystemPublishEndpoints": map[string]any{
			"default": map[string]any{
				"rootDir":    dest,
				"linkMethod": "hardlink",
			},
		},
	}
	raw, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(scratch, "aptly.conf")
	return path, os.WriteFile(path, raw, 0o644)
}
