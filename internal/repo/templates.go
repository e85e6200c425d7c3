package repo

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type installData struct {
	Name        string
	DistRelease string
	Codename    string
	BaseURL     string
}

type rpmReleaseData struct {
	Name        string
	DistRelease string
	NumericID   string
	BaseURL     string
}

type readmeData struct {
	Name        string
	Description string
	BaseURL     string
	DebSnippets []string
	RPMReleases []rpmReleaseData
}

// writeReadme renders the user-facing README.md plus one INSTALL.<distro>.md
// per Debian-like distribution present in the publish.
func (b *Builder) writeReadme(dest string, debs, rpms []Source) error {
	baseURL := strings.TrimSuffix(b.opts.URL, "/")
	data := readmeData{
		Name:        b.opts.Name,
		Description: b.opts.Description,
		BaseURL:     baseURL,
	}

	debReleases, _ := groupByRelease(debs)
	perDistro := map[string][]string{}
	var distros []string
	for _, rel := range debReleases {
		var snippet strings.Builder
		err := templates.ExecuteTemplate(&snippet, "INSTALL.md.tmpl", installData{
			Name:        b.opts.Name,
			DistRelease: rel.String(),
			Codename:    rel.Codename,
			BaseURL:     baseURL,
		})
		if err != nil {
			return err
		}
		data.DebSnippets = append(data.DebSnippets, snippet.String())
		if _, seen := perDistro[rel.DistroID()]; !seen {
			distros = append(distros, rel.DistroID())
		}
		perDistro[rel.DistroID()] = append(perDistro[rel.DistroID()], snippet.String())
	}

	rpmReleases, _ := groupByRelease(rpms)
	for _, rel := range rpmReleases {
		data.RPMReleases = append(data.RPMReleases, rpmReleaseData{
			Name:        b.opts.Name,
			DistRelease: rel.String(),
			NumericID:   rel.NumericID,
			BaseURL:     baseURL,
		})
	}

	var readme strings.Builder
	if err := templates.ExecuteTemplate(&readme, "README.md.tmpl", data); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dest, "README.md"), []byte(readme.String()), 0o644); err != nil {
		return err
	}

	for _, id := range distros {
		content := strings.Join(perDistro[id], "\n")
		err := os.WriteFile(filepath.Join(dest, "INSTALL."+id+".md"), []byte(content), 0o644)
		if err != nil {
			return err
		}
	}
	return nil
}
