package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbigot/pkg-builder/internal/distro"
)

func fedora38() *distro.Release {
	return distro.ByID("fedora").Find("38")[0]
}

func bookworm() *distro.Release {
	return distro.ByID("debian").Find("bookworm")[0]
}

func TestArchFromFileName(t *testing.T) {
	cases := map[string]string{
		"libfoo-2.4.1-1.fc38.x86_64.rpm": "x86_64",
		"libfoo-2.4.1-1.fc38.noarch.rpm": "noarch",
		"libfoo-2.4.1-1.fc38.src.rpm":    "src",
		"weird.rpm":                      "weird",
		"noext":                          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, archFromFileName(in), "input %q", in)
	}
}

func TestGroupByReleaseIsStable(t *testing.T) {
	sources := []Source{
		{Release: fedora38(), Dir: "/out/b"},
		{Release: bookworm(), Dir: "/out/c"},
		{Release: fedora38(), Dir: "/out/a"},
	}
	releases, buckets := groupByRelease(sources)
	require.Len(t, releases, 2)
	// ordered by uid: debian-12-bookworm < fedora-38
	assert.Equal(t, "debian-12-bookworm", releases[0].UID())
	assert.Equal(t, "fedora-38", releases[1].UID())
	assert.Len(t, buckets["fedora-38"], 2)
}

func TestWriteRepoFilePublished(t *testing.T) {
	b := NewBuilder(nil, nil, Options{
		Name:        "pdidev",
		Description: "PDI development packages",
		URL:         "https://repo.example.org/rpm/",
	})
	relDir := t.TempDir()
	require.NoError(t, b.writeRepoFile(relDir, fedora38()))

	data, err := os.ReadFile(filepath.Join(relDir, "pdidev.repo"))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "[pdidev]\n")
	assert.Contains(t, content, "name=PDI development packages\n")
	assert.Contains(t, content, "type=rpm-md\n")
	assert.Contains(t, content, "baseurl=https://repo.example.org/rpm/38/\n")
	assert.Contains(t, content, "gpgcheck=1\n")
	assert.Contains(t, content, "repo_gpgcheck=1\n")
	assert.Contains(t, content, "gpgkey=https://repo.example.org/rpm/pdidev.key\n")
	assert.Contains(t, content, "enabled=1\n")
}

func TestWriteRepoFileLocal(t *testing.T) {
	b := NewBuilder(nil, nil, Options{Name: "pdidev"})
	relDir := t.TempDir()
	require.NoError(t, b.writeRepoFile(relDir, fedora38()))

	data, err := os.ReadFile(filepath.Join(relDir, "pdidev.repo"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "baseurl=file:///localrepo\n")
	assert.Contains(t, string(data), "gpgkey=file:///localrepo/pdidev.key\n")
}

func TestWriteReadme(t *testing.T) {
	b := NewBuilder(nil, nil, Options{
		Name:        "pdidev",
		Description: "PDI development packages",
		URL:         "https://repo.example.org",
	})
	dest := t.TempDir()
	debs := []Source{{Release: bookworm(), Dir: "/out/a"}}
	rpms := []Source{{Release: fedora38(), Dir: "/out/b"}}
	require.NoError(t, b.writeReadme(dest, debs, rpms))

	readme, err := os.ReadFile(filepath.Join(dest, "README.md"))
	require.NoError(t, err)
	content := string(readme)
	assert.Contains(t, content, "# pdidev package repository")
	assert.Contains(t, content, "PDI development packages")
	assert.Contains(t, content, "bookworm")
	assert.Contains(t, content, "38/pdidev.repo")

	install, err := os.ReadFile(filepath.Join(dest, "INSTALL.debian.md"))
	require.NoError(t, err)
	assert.Contains(t, string(install), "deb [signed-by=")
	assert.Contains(t, string(install), "bookworm")
	assert.Contains(t, string(install), "https://repo.example.org")
}

func TestWriteReadmeIsIdempotent(t *testing.T) {
	b := NewBuilder(nil, nil, Options{
		Name: "pdidev",
		URL:  "https://repo.example.org",
	})
	dest := t.TempDir()
	debs := []Source{{Release: bookworm(), Dir: "/out/a"}}

	require.NoError(t, b.writeReadme(dest, debs, nil))
	first, err := os.ReadFile(filepath.Join(dest, "README.md"))
	require.NoError(t, err)

	require.NoError(t, b.writeReadme(dest, debs, nil))
	second, err := os.ReadFile(filepath.Join(dest, "README.md"))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestDefaultDescription(t *testing.T) {
	b := NewBuilder(nil, nil, Options{Name: "pdidev"})
	assert.Equal(t, "pdidev package repository", b.opts.Description)
}
