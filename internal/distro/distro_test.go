package distro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDist builds a five-release distribution with fixed dates so the
// selector tests do not depend on the wall clock.
func testDist() *Distribution {
	return newDistribution("Test Linux", "testlinux", nil, []relSpec{
		{name: "1 (one)", id: "1", codename: "one",
			released: date(2018, time.January, 1), eol: date(2020, time.January, 1)},
		{name: "2 (two)", id: "2", codename: "two",
			released: date(2020, time.January, 1), eol: date(2022, time.January, 1)},
		{name: "3 (three)", id: "3", codename: "three", suite: "stable",
			released: date(2022, time.January, 1), eol: date(2099, time.January, 1)},
		{name: "4 (four)", id: "4", codename: "four",
			released: date(2024, time.January, 1), eol: date(2099, time.January, 1)},
		{name: "5 (five)", id: "5", codename: "five"},
	})
}

func TestReleaseUID(t *testing.T) {
	d := ByID("debian")
	require.NotNil(t, d)

	bookworm := d.Find("bookworm")
	require.Len(t, bookworm, 1)
	assert.Equal(t, "debian-12-bookworm", bookworm[0].UID())

	sid := d.Find("sid")
	require.Len(t, sid, 1)
	assert.Equal(t, "debian-sid", sid[0].UID())
	assert.Equal(t, "unstable", sid[0].Suite)
}

func TestReleaseFamilies(t *testing.T) {
	focal := ByID("ubuntu").Find("focal")
	require.Len(t, focal, 1)
	assert.True(t, focal[0].Like("debian"))
	assert.False(t, focal[0].Like("fedora"))

	centos := ByID("centos").Find("7")
	require.Len(t, centos, 1)
	assert.True(t, centos[0].Like("fedora"))
	assert.True(t, centos[0].Like("rhel"))
}

func TestSupportedWindow(t *testing.T) {
	d := testDist()
	supported := d.Supported()
	require.Len(t, supported, 2)
	assert.Equal(t, "three", supported[0].Codename)
	assert.Equal(t, "four", supported[1].Codename)
}

func TestFindByAnyName(t *testing.T) {
	d := testDist()
	for _, selector := range []string{"three", "stable", "3"} {
		found := d.Find(selector)
		require.Len(t, found, 1, "selector %q", selector)
		assert.Equal(t, "3", found[0].NumericID)
	}
	assert.Empty(t, d.Find("nonsense"))
}

func TestResolveSelectors(t *testing.T) {
	d := testDist()

	all, err := d.ResolveSelectors([]string{"all"})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	got, err := d.ResolveSelectors([]string{"supported"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = d.ResolveSelectors([]string{"three"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = d.ResolveSelectors([]string{"nonsense"})
	assert.Error(t, err)
}

func TestWindowExtenders(t *testing.T) {
	d := testDist()

	// backward from a single release
	got, err := d.ResolveSelectors([]string{"three", "-"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Codename)
	assert.Equal(t, "three", got[1].Codename)

	// forward twice
	got, err = d.ResolveSelectors([]string{"three", "+", "+"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "five", got[2].Codename)

	// the extender operates on the preceding selector's result, not the
	// cumulative set
	got, err = d.ResolveSelectors([]string{"one", "four", "-"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Codename)
	assert.Equal(t, "three", got[1].Codename)
	assert.Equal(t, "four", got[2].Codename)

	_, err = d.ResolveSelectors([]string{"-"})
	assert.Error(t, err)

	_, err = d.ResolveSelectors([]string{"one", "-"})
	assert.Error(t, err)
}

func TestMatchFilter(t *testing.T) {
	rel := ByID("debian").Find("bookworm")[0]

	for _, filter := range []string{
		"debian",
		"debian:bookworm",
		"debian:" + rel.Suite,
		"debian:12",
		"debian:" + rel.Name,
	} {
		assert.True(t, rel.MatchFilter(filter), "filter %q", filter)
	}

	assert.False(t, rel.MatchFilter("ubuntu"))
	assert.False(t, rel.MatchFilter("debian:bullseye"))
}

func TestCatalogLookups(t *testing.T) {
	assert.Nil(t, ByID("gentoo"))
	require.NotNil(t, ByID("fedora"))
	require.Len(t, ByID("fedora").Find("38"), 1)
	assert.Equal(t, "fedora-38", ByID("fedora").Find("38")[0].UID())
}
