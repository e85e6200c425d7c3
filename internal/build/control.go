package build

import (
	"bufio"
	"strings"
)

// controlFile is a parsed debian/control: one source stanza followed by one
// stanza per binary package.
type controlFile struct {
	stanzas []map[string]string
}

// parseControl parses the RFC 822 style stanza format: fields with
// continuation lines, stanzas separated by blank lines.
func parseControl(content string) *controlFile {
	cf := &controlFile{}
	stanza := map[string]string{}
	var lastKey string

	flush := func() {
		if len(stanza) > 0 {
			cf.stanzas = append(cf.stanzas, stanza)
			stanza = map[string]string{}
		}
		lastKey = ""
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.TrimSpace(line) == "":
			flush()
		case line[0] == ' ' || line[0] == '\t':
			if lastKey != "" {
				stanza[lastKey] += "\n" + strings.TrimSpace(line)
			}
		case strings.HasPrefix(line, "#"):
			// comment
		default:
			key, value, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			lastKey = strings.TrimSpace(key)
			stanza[lastKey] = strings.TrimSpace(value)
		}
	}
	flush()
	return cf
}

// binaryPackages returns the union of Package fields across stanzas.
func (cf *controlFile) binaryPackages() []string {
	var out []string
	for _, stanza := range cf.stanzas {
		if name, ok := stanza["Package"]; ok && name != "" {
			out = append(out, name)
		}
	}
	return out
}

// buildDependencies returns the package names referenced from the three
// Build-Depends fields. Alternatives contribute all their alternates;
// version constraints, architecture qualifiers and build profiles are
// dropped.
func (cf *controlFile) buildDependencies() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, stanza := range cf.stanzas {
		for _, field := range []string{"Build-Depends", "Build-Depends-Indep", "Build-Depends-Arch"} {
			value, ok := stanza[field]
			if !ok {
				continue
			}
			for _, dep := range strings.Split(value, ",") {
				for _, alt := range strings.Split(dep, "|") {
					name := depName(alt)
					if name == "" {
						continue
					}
					if _, dup := seen[name]; !dup {
						seen[name] = struct{}{}
						out = append(out, name)
					}
				}
			}
		}
	}
	return out
}

// depName extracts the bare package name from one dependency item.
func depName(item string) string {
	name := strings.TrimSpace(item)
	for _, sep := range []string{"(", "[", "<", ":", " ", "\t", "\n"} {
		if i := strings.Index(name, sep); i >= 0 {
			name = name[:i]
		}
	}
	return strings.TrimSpace(name)
}
