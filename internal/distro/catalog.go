package distro

import "time"

// The catalog is a static in-process table. Release and EOL dates drive the
// "supported" selector; Debian and Ubuntu rolling suite names are derived
// from them at init.

var catalog []*Distribution

// Catalog returns every known distribution.
func Catalog() []*Distribution {
	return catalog
}

// ByID returns the distribution with the given id, or nil.
func ByID(id string) *Distribution {
	for _, d := range catalog {
		if d.ID == id {
			return d
		}
	}
	return nil
}

type relSpec struct {
	name     string
	id       string
	codename string
	suite    string
	released time.Time
	eol      time.Time
}

func newDistribution(name, id string, idLike []string, specs []relSpec) *Distribution {
	d := &Distribution{Name: name, ID: id, IDLike: idLike}
	for i, s := range specs {
		rel := s.released
		if rel.IsZero() {
			rel = never
		}
		eol := s.eol
		if eol.IsZero() {
			eol = never
		}
		d.releases = append(d.releases, &Release{
			dist:        d,
			Name:        s.name,
			NumericID:   s.id,
			Codename:    s.codename,
			Suite:       s.suite,
			ReleaseDate: rel,
			EOLDate:     eol,
			order:       i,
		})
	}
	return d
}

// deriveDebianSuites assigns stable/oldstable/... to the supported numbered
// releases, newest first, and testing to the first numbered release still
// unreleased.
func deriveDebianSuites(d *Distribution) {
	supported := d.Supported()
	prefix := ""
	for i := len(supported) - 1; i >= 0; i-- {
		if supported[i].NumericID == "" {
			continue
		}
		supported[i].Suite = prefix + "stable"
		prefix += "old"
	}
	for _, r := range d.releases {
		if r.NumericID != "" && !r.Released() {
			r.Suite = "testing"
			break
		}
	}
}

func init() {
	debian := newDistribution("Debian GNU/Linux", "debian", nil, []relSpec{
		{name: "10 (buster)", id: "10", codename: "buster",
			released: date(2019, time.July, 6), eol: date(2024, time.June, 30)},
		{name: "11 (bullseye)", id: "11", codename: "bullseye",
			released: date(2021, time.August, 14), eol: date(2026, time.August, 31)},
		{name: "12 (bookworm)", id: "12", codename: "bookworm",
			released: date(2023, time.June, 10)},
		{name: "13 (trixie)", id: "13", codename: "trixie",
			released: date(2025, time.August, 9)},
		{name: "14 (forky)", id: "14", codename: "forky"},
		{name: "sid", codename: "sid", suite: "unstable",
			released: date(1993, time.August, 16)},
		{name: "experimental", codename: "experimental", suite: "rc-buggy",
			released: date(1993, time.August, 16)},
	})
	deriveDebianSuites(debian)

	ubuntu := newDistribution("Ubuntu", "ubuntu", []string{"debian"}, []relSpec{
		{name: "18.04 LTS (Bionic Beaver)", id: "18.04", codename: "bionic",
			released: date(2018, time.April, 26), eol: date(2023, time.May, 31)},
		{name: "20.04 LTS (Focal Fossa)", id: "20.04", codename: "focal",
			released: date(2020, time.April, 23), eol: date(2025, time.May, 29)},
		{name: "22.04 LTS (Jammy Jellyfish)", id: "22.04", codename: "jammy",
			released: date(2022, time.April, 21), eol: date(2027, time.June, 1)},
		{name: "24.04 LTS (Noble Numbat)", id: "24.04", codename: "noble",
			released: date(2024, time.April, 25), eol: date(2029, time.May, 31)},
		{name: "25.04 (Plucky Puffin)", id: "25.04", codename: "plucky",
			released: date(2025, time.April, 17), eol: date(2026, time.January, 17)},
		{name: "25.10 (Questing Quokka)", id: "25.10", codename: "questing",
			released: date(2025, time.October, 9), eol: date(2026, time.July, 9)},
		{name: "26.04 LTS (Resolute Raccoon)", id: "26.04", codename: "resolute"},
	})
	for _, r := range ubuntu.releases {
		if !r.Released() {
			r.Suite = "devel"
			break
		}
	}

	fedora := newDistribution("Fedora", "fedora", nil, []relSpec{
		{name: "37", id: "37", released: date(2022, time.November, 15), eol: date(2023, time.December, 5)},
		{name: "38", id: "38", released: date(2023, time.April, 18), eol: date(2024, time.May, 21)},
		{name: "39", id: "39", released: date(2023, time.November, 7), eol: date(2024, time.November, 26)},
		{name: "40", id: "40", released: date(2024, time.April, 23), eol: date(2025, time.May, 28)},
		{name: "41", id: "41", released: date(2024, time.October, 29), eol: date(2025, time.December, 2)},
		{name: "42", id: "42", released: date(2025, time.April, 15)},
		{name: "43", id: "43", suite: "rawhide", released: date(2025, time.November, 11)},
	})

	centos := newDistribution("CentOS Linux", "centos", []string{"rhel", "fedora"}, []relSpec{
		{name: "7", id: "7", released: date(2014, time.July, 7), eol: date(2024, time.June, 30)},
		{name: "8", id: "8", released: date(2019, time.September, 24), eol: date(2021, time.December, 31)},
		{name: "9 (Stream)", id: "9", released: date(2021, time.December, 3), eol: date(2027, time.May, 31)},
	})

	rhel := newDistribution("Red Hat Enterprise Linux", "rhel", []string{"fedora"}, []relSpec{
		{name: "8.8 (Ootpa)", id: "8.8", released: date(2023, time.May, 16), eol: date(2025, time.May, 31)},
		{name: "8.9 (Ootpa)", id: "8.9", released: date(2023, time.November, 14), eol: date(2024, time.May, 22)},
		{name: "8.10 (Ootpa)", id: "8.10", released: date(2024, time.May, 22), eol: date(2029, time.May, 31)},
		{name: "9.2 (Plow)", id: "9.2", released: date(2023, time.May, 10), eol: date(2025, time.May, 31)},
		{name: "9.3 (Plow)", id: "9.3", released: date(2023, time.November, 7), eol: date(2024, time.April, 30)},
		{name: "9.4 (Plow)", id: "9.4", released: date(2024, time.April, 30), eol: date(2032, time.May, 31)},
	})

	catalog = []*Distribution{debian, ubuntu, fedora, centos, rhel}
}
