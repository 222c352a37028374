// Package render turns patron cohorts into the bulk-load userdata XML
// artifacts, one file per chunk.
package render

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/pdx-library/patronload/internal/cohort"
)

//go:embed userdata-template.xml
var defaultTemplate string

// OutputFilenameBase is the suffix of each numbered output file.
const OutputFilenameBase = "-userdata.xml"

func funcs() template.FuncMap {
	return template.FuncMap{
		"xml": func(s string) string {
			s = strings.ReplaceAll(s, "&", "&amp;")
			s = strings.ReplaceAll(s, "<", "&lt;")
			s = strings.ReplaceAll(s, ">", "&gt;")
			return s
		},
		"ymd": func(t time.Time) string {
			return t.Format("20060102")
		},
	}
}

// LoadTemplate parses the operator-maintained userdata template, or the
// embedded default when path is empty.
func LoadTemplate(path string) (*template.Template, error) {
	if path == "" {
		return template.New("userdata").Funcs(funcs()).Parse(defaultTemplate)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	tmpl, err := template.New(filepath.Base(path)).Funcs(funcs()).Parse(string(b))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return tmpl, nil
}

type templateData struct {
	Patrons cohort.Cohort
}

// WriteChunks renders the cohort through the template in chunks of at most
// chunkSize patrons, writing numbered files (1-userdata.xml, ...) into dir.
// Returns the written paths in order.
func WriteChunks(dir string, tmpl *template.Template, c cohort.Cohort, chunkSize int) ([]string, error) {
	var paths []string
	n := 1
	for chunk := range cohort.Chunks(c, chunkSize) {
		path := filepath.Join(dir, fmt.Sprintf("%d%s", n, OutputFilenameBase))
		f, err := os.Create(path)
		if err != nil {
			return paths, fmt.Errorf("create %s: %w", path, err)
		}
		if err := tmpl.Execute(f, templateData{Patrons: chunk}); err != nil {
			_ = f.Close()
			return paths, fmt.Errorf("render %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return paths, fmt.Errorf("close %s: %w", path, err)
		}
		paths = append(paths, path)
		n++
	}
	return paths, nil
}
