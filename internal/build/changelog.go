package build

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jbigot/pkg-builder/internal/models"
)

// ChangelogEntry is the topmost block of a debian/changelog.
type ChangelogEntry struct {
	Package       string
	Version       string
	Distributions string
	Urgency       string
	Author        string
	Date          time.Time
}

var (
	changelogHeader  = regexp.MustCompile(`^(\S+) \(([^)]+)\) ([^;]+); urgency=(\S+)`)
	changelogTrailer = regexp.MustCompile(`^ -- (.+>)  (.+)$`)
)

// parseChangelogTop extracts the topmost entry of a changelog.
func parseChangelogTop(content string) (*ChangelogEntry, error) {
	lines := strings.Split(content, "\n")
	entry := &ChangelogEntry{}
	for _, line := range lines {
		if m := changelogHeader.FindStringSubmatch(line); m != nil && entry.Package == "" {
			entry.Package = m[1]
			entry.Version = m[2]
			entry.Distributions = strings.TrimSpace(m[3])
			entry.Urgency = m[4]
			continue
		}
		if m := changelogTrailer.FindStringSubmatch(line); m != nil && entry.Package != "" {
			entry.Author = m[1]
			date, err := time.Parse(time.RFC1123Z, strings.TrimSpace(m[2]))
			if err != nil {
				return nil, &models.ConfigError{Detail: "parsing changelog date", Err: err}
			}
			entry.Date = date
			return entry, nil
		}
	}
	return nil, &models.ConfigError{Detail: "no complete changelog entry found"}
}

// UpstreamVersion strips the epoch and the Debian revision from a version.
func (e *ChangelogEntry) UpstreamVersion() string {
	v := e.Version
	if i := strings.Index(v, ":"); i >= 0 {
		v = v[i+1:]
	}
	if i := strings.LastIndex(v, "-"); i >= 0 {
		v = v[:i]
	}
	return v
}

// rebuildVersion appends the automated backport suffix to the topmost
// version: ~bpo<numeric_id>.pdidev.<seconds since the topmost entry>.
func rebuildVersion(top *ChangelogEntry, numericID string, now time.Time) string {
	delta := int64(now.Sub(top.Date).Seconds())
	if delta < 0 {
		delta = 0
	}
	return fmt.Sprintf("%s~bpo%s.pdidev.%d", top.Version, numericID, delta)
}

// prependRebuildEntry renders the new topmost changelog block in front of
// the existing content.
func prependRebuildEntry(content string, top *ChangelogEntry, version, distributions, releaseName, author string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) %s; urgency=%s\n\n", top.Package, version, distributions, top.Urgency)
	fmt.Fprintf(&b, "  * Rebuild for %s\n\n", releaseName)
	fmt.Fprintf(&b, " -- %s  %s\n\n", author, now.In(top.Date.Location()).Format(time.RFC1123Z))
	b.WriteString(content)
	return b.String()
}
