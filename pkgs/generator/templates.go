package generator

// Template components. Every component emits lines as "\n" + text and never
// ends with a newline, so composition needs no blank-line bookkeeping; the
// result is passed through go/format for indentation.

const masterTemplate = `{{define "file"}}// Code generated by gounit{{with .Source}} from {{.}}{{end}}. DO NOT EDIT.

package {{.Package}}
{{- if .Imports}}

import (
{{- range .Imports}}
	{{with .Name}}{{.}} {{end}}{{quote .Path}}
{{- end}}
)
{{- end}}
{{- if .Suite}}{{template "subtests" .Suite}}{{else}}{{template "functions" .}}{{end}}
{{end}}`

const hookTemplate = `{{define "hook"}}
// {{.Kind}}{{with .Label}}: {{comment .}}{{end}}
{{- with .Body}}
{{.}}
{{- end}}
{{- end}}`

// testBodyTemplate renders one test: parallel marker, once-guarded
// setup_all, setup, test body, teardown.
const testBodyTemplate = `{{define "test-body"}}
{{- if .Parallel}}
t.Parallel()
{{- end}}
{{- with .SetupAll}}
{{$.Guard}}.Do(func() {
{{- template "hook" .}}
})
{{- end}}
{{- with .Setup}}
{{- template "hook" .}}
{{- end}}
{{- if .TeardownCleanup}}{{with .Teardown}}
t.Cleanup(func() {
{{- template "hook" .}}
})
{{- end}}{{end}}
{{- if .Scoped}}
{
{{- with .Body}}
{{.}}
{{- end}}
}
{{- else}}{{with .Body}}
{{.}}
{{- end}}{{end}}
{{- if not .TeardownCleanup}}{{with .Teardown}}
{{- template "hook" .}}
{{- end}}{{end}}
{{- end}}`

// functionsTemplate renders one top-level test function per test and a
// package-level guard per describe.
const functionsTemplate = `{{define "functions"}}
{{- range .Groups}}
{{- range .Notes}}

// {{comment .}}
{{- end}}
{{- with .Guard}}

var {{.}} sync.Once
{{- end}}
{{- range .Tests}}

func {{.Name}}(t *testing.T) {
{{- template "test-body" .}}
}
{{- end}}
{{- end}}
{{- end}}`

// subtestsTemplate renders a single test function with a t.Run scope per
// describe and a t.Run per test.
const subtestsTemplate = `{{define "subtests"}}

func {{.Name}}(t *testing.T) {
{{- range .Groups}}
t.Run({{quote .Describe}}, func(t *testing.T) {
{{- with .Guard}}
var {{.}} sync.Once
{{- end}}
{{- with .TeardownAll}}
t.Cleanup(func() {
{{- template "hook" .}}
})
{{- end}}
{{- range .Tests}}
t.Run({{quote .Name}}, func(t *testing.T) {
{{- template "test-body" .}}
})
{{- end}}
})
{{- end}}
}
{{- end}}`

// TemplateRegistry holds all template components
type TemplateRegistry struct {
	templates map[string]string
}

// NewTemplateRegistry creates a new template registry with all components
func NewTemplateRegistry() *TemplateRegistry {
	registry := &TemplateRegistry{
		templates: make(map[string]string),
	}
	registry.registerComponents()
	return registry
}

func (tr *TemplateRegistry) registerComponents() {
	tr.templates["file"] = masterTemplate
	tr.templates["hook"] = hookTemplate
	tr.templates["test-body"] = testBodyTemplate
	tr.templates["functions"] = functionsTemplate
	tr.templates["subtests"] = subtestsTemplate
}

// GetTemplate returns a specific template component
func (tr *TemplateRegistry) GetTemplate(name string) (string, bool) {
	tmpl, exists := tr.templates[name]
	return tmpl, exists
}

// GetAllTemplates returns all template components as a single string.
// Components are {{define}} blocks, so their order does not matter.
func (tr *TemplateRegistry) GetAllTemplates() string {
	var total int
	for _, tmpl := range tr.templates {
		total += len(tmpl) + 1
	}
	buf := make([]byte, 0, total)
	for _, tmpl := range tr.templates {
		buf = append(buf, tmpl...)
		buf = append(buf, '\n')
	}
	return string(buf)
}
