package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectNodeDebian(t *testing.T) {
	root := t.TempDir()
	debianDir := filepath.Join(root, "libfoo", "debian")
	require.NoError(t, os.MkdirAll(debianDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(debianDir, "control"), []byte(sampleControl), 0o644))

	n, err := DetectNode(&Env{}, root, "libfoo", bookworm(), NodeOptions{Parallelism: 4})
	require.NoError(t, err)

	assert.Equal(t, "libfoo", n.Name())
	assert.Equal(t, SourceDebianQuilt, n.Kind())
	assert.Equal(t, []string{"libfoo1", "libfoo-dev"}, n.Provides())
	assert.Contains(t, n.Requires(), "cmake")
	assert.Equal(t, StatePending, n.State())
	assert.False(t, n.Resolved())
	assert.Empty(t, n.OutDir())
}

func TestDetectNodeAbsent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	n, err := DetectNode(&Env{}, root, "empty", bookworm(), NodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, SourceAbsent, n.Kind())
	assert.Empty(t, n.Provides())
	assert.Empty(t, n.Requires())
	assert.NoError(t, n.Build(t.TempDir()))
}

func TestWorkDirName(t *testing.T) {
	assert.Equal(t, "libfoo.debian-12-bookworm.deb-build", workDirName("libfoo", bookworm(), "deb"))
	assert.Equal(t, "libfoo.fedora-38.rpm-build", workDirName("libfoo", fedora38(), "rpm"))
}

func TestExpandOrigURL(t *testing.T) {
	got := expandOrigURL("https://example.org/{package}/{package}-{version}.tar.gz", "libfoo", "2.4.1")
	assert.Equal(t, "https://example.org/libfoo/libfoo-2.4.1.tar.gz", got)
}

func TestBareName(t *testing.T) {
	assert.Equal(t, "cmake", bareName("cmake >= 3.16"))
	assert.Equal(t, "pkgconfig", bareName("pkgconfig(zlib)"))
	assert.Equal(t, "libfoo", bareName("  libfoo  "))
	assert.Equal(t, "", bareName(""))
}

func TestSourceFileName(t *testing.T) {
	cases := map[string]string{
		"https://example.org/pub/libfoo-2.4.1.tar.gz":             "libfoo-2.4.1.tar.gz",
		"https://example.org/download?file=libfoo.tar.xz":         "libfoo.tar.xz",
		"https://example.org/dl?dir=pub&file=libfoo-2.4.1.tar.gz": "libfoo-2.4.1.tar.gz",
		"https://example.org/a/b/c":                               "c",
	}
	for in, want := range cases {
		assert.Equal(t, want, sourceFileName(in), "input %q", in)
	}
}

var sourceLineCases = map[string]bool{
	"Source0: https://example.org/foo.tar.gz":  true,
	"  source12 : https://example.org/foo.tgz": true,
	"SOURCE: https://example.org/foo.tar.xz":   true,
	"Patch0: fix.patch":                        false,
	"# Source0: commented":                     false,
}

func TestSourceLinePattern(t *testing.T) {
	for line, want := range sourceLineCases {
		assert.Equal(t, want, sourceLine.MatchString(line), "line %q", line)
	}
}
