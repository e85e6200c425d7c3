package distro

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Distribution is one distro family instance (debian, ubuntu, fedora, ...).
// Its releases are ordered oldest first.
type Distribution struct {
	Name     string
	ID       string
	IDLike   []string
	releases []*Release
}

// Release identifies one (distribution, version) pair. Immutable after the
// catalog is initialized.
type Release struct {
	dist        *Distribution
	Name        string
	NumericID   string
	Codename    string
	Suite       string
	ReleaseDate time.Time
	EOLDate     time.Time
	order       int
}

// Distro returns the owning distribution.
func (r *Release) Distro() *Distribution {
	return r.dist
}

// DistroID returns the owning distribution's id.
func (r *Release) DistroID() string {
	return r.dist.ID
}

// IDLike returns the family set of the owning distribution, including its
// own id.
func (r *Release) IDLike() []string {
	return append([]string{r.dist.ID}, r.dist.IDLike...)
}

// Like reports whether the release belongs to the given family.
func (r *Release) Like(family string) bool {
	for _, id := range r.IDLike() {
		if id == family {
			return true
		}
	}
	return false
}

// UID yields a filesystem-safe unique name for the release.
func (r *Release) UID() string {
	parts := []string{r.dist.ID}
	if r.NumericID != "" {
		parts = append(parts, r.NumericID)
	}
	if r.Codename != "" {
		parts = append(parts, r.Codename)
	}
	return strings.Join(parts, "-")
}

// Released reports whether the release date has passed.
func (r *Release) Released() bool {
	return !r.ReleaseDate.After(time.Now())
}

// EOLed reports whether the end-of-life date has passed.
func (r *Release) EOLed() bool {
	return !r.EOLDate.After(time.Now())
}

// Supported reports whether the release is out and not yet end-of-life.
func (r *Release) Supported() bool {
	return r.Released() && !r.EOLed()
}

// Less orders releases oldest first within one distribution.
func (r *Release) Less(other *Release) bool {
	return r.dist == other.dist && r.order < other.order
}

func (r *Release) String() string {
	return r.dist.Name + " " + r.Name
}

// Releases returns the distribution's releases, oldest first.
func (d *Distribution) Releases() []*Release {
	out := make([]*Release, len(d.releases))
	copy(out, d.releases)
	return out
}

// Supported returns the currently-supported releases, oldest first.
func (d *Distribution) Supported() []*Release {
	var out []*Release
	for _, r := range d.releases {
		if r.Supported() {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the releases matching a literal selector: a codename, a
// suite, or a numeric id.
func (d *Distribution) Find(selector string) []*Release {
	var out []*Release
	for _, r := range d.releases {
		if r.Codename == selector || r.Suite == selector || r.NumericID == selector {
			out = append(out, r)
		}
	}
	return out
}

func (d *Distribution) String() string {
	return d.Name
}

// MatchFilter reports whether the release matches a -D style filter of the
// form "distro" or "distro:value" where value is a codename, suite, numeric
// id, or release name.
func (r *Release) MatchFilter(filter string) bool {
	distro, value, found := strings.Cut(filter, ":")
	if distro != r.dist.ID {
		return false
	}
	if !found {
		return true
	}
	return value == r.Codename || value == r.Suite || value == r.NumericID || value == r.Name
}

// ResolveSelectors expands a selector list into a release set. A selector is
// a literal (codename, suite, numeric id), "supported", "all", or the
// window extenders "+" and "-" which widen the immediately-preceding
// selector's result by one release forward or backward.
func (d *Distribution) ResolveSelectors(selectors []string) ([]*Release, error) {
	picked := make(map[*Release]struct{})
	var prev []*Release
	for _, sel := range selectors {
		var cur []*Release
		switch sel {
		case "all":
			cur = d.Releases()
		case "supported":
			cur = d.Supported()
		case "+", "-":
			if len(prev) == 0 {
				return nil, fmt.Errorf("window extender %q without a preceding selector", sel)
			}
			ext := d.extend(prev, sel == "+")
			if ext == nil {
				return nil, fmt.Errorf("window extender %q ran past the %s release list", sel, d.ID)
			}
			cur = append(prev, ext)
		default:
			cur = d.Find(sel)
			if len(cur) == 0 {
				return nil, fmt.Errorf("unknown %s release selector %q", d.ID, sel)
			}
		}
		for _, r := range cur {
			picked[r] = struct{}{}
		}
		prev = cur
	}
	out := make([]*Release, 0, len(picked))
	for r := range picked {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out, nil
}

// extend returns the release just outside the window, newer when forward.
func (d *Distribution) extend(window []*Release, forward bool) *Release {
	lo, hi := window[0].order, window[0].order
	for _, r := range window[1:] {
		if r.order < lo {
			lo = r.order
		}
		if r.order > hi {
			hi = r.order
		}
	}
	for _, r := range d.releases {
		if forward && r.order == hi+1 {
			return r
		}
		if !forward && r.order == lo-1 {
			return r
		}
	}
	return nil
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// never marks a date not yet known (release or EOL far in the future).
var never = date(9999, time.December, 31)
