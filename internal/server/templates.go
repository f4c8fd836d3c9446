package server

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"

	"github.com/nhle/inbox/internal/model"
)

// Template is a named notification blueprint. Title and message are
// text/template sources rendered against the caller's variables; missing
// variables render as empty strings.
type Template struct {
	Name     string
	Type     string
	Priority model.Priority

	title   *template.Template
	message *template.Template
}

var templateSources = []struct {
	name, typ, title, message string
	priority                  model.Priority
}{
	{
		name:     "welcome",
		typ:      "info",
		priority: model.PriorityLow,
		title:    `Welcome, {{.name}}!`,
		message:  `Your inbox is ready. New notifications will show up here as they arrive.`,
	},
	{
		name:     "task_assigned",
		typ:      "task",
		priority: model.PriorityNormal,
		title:    `Task assigned: {{.task}}`,
		message:  `{{with .assigner}}{{.}}{{else}}Someone{{end}} assigned "{{.task}}" to you.`,
	},
	{
		name:     "task_due",
		typ:      "task",
		priority: model.PriorityHigh,
		title:    `Task due: {{.task}}`,
		message:  `"{{.task}}" is due {{with .due}}{{.}}{{else}}soon{{end}}.`,
	},
	{
		name:     "mention",
		typ:      "mention",
		priority: model.PriorityNormal,
		title:    `{{.author}} mentioned you`,
		message:  `{{.author}} mentioned you{{with .context}} in {{.}}{{end}}{{with .excerpt}}: {{.}}{{end}}`,
	},
}

// Templates holds the built-in templates keyed by name.
var Templates = mustParseTemplates()

func mustParseTemplates() map[string]*Template {
	out := make(map[string]*Template, len(templateSources))
	for _, src := range templateSources {
		out[src.name] = &Template{
			Name:     src.name,
			Type:     src.typ,
			Priority: src.priority,
			title:    template.Must(template.New(src.name + ".title").Option("missingkey=zero").Parse(src.title)),
			message:  template.Must(template.New(src.name + ".message").Option("missingkey=zero").Parse(src.message)),
		}
	}
	return out
}

// TemplateNames returns the built-in template names in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(Templates))
	for name := range Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the title and message templates with vars.
func (t *Template) Render(vars map[string]string) (title, message string, err error) {
	if vars == nil {
		vars = map[string]string{}
	}

	var buf bytes.Buffer
	if err := t.title.Execute(&buf, vars); err != nil {
		return "", "", fmt.Errorf("rendering %s title: %w", t.Name, err)
	}
	title = buf.String()

	buf.Reset()
	if err := t.message.Execute(&buf, vars); err != nil {
		return "", "", fmt.Errorf("rendering %s message: %w", t.Name, err)
	}
	return title, buf.String(), nil
}

// CreateOptions renders t for req, applying any overrides it carries.
func (t *Template) CreateOptions(req model.TemplateRequest) (model.CreateOptions, error) {
	title, message, err := t.Render(req.Variables)
	if err != nil {
		return model.CreateOptions{}, err
	}

	opts := model.CreateOptions{
		UserID:     req.UserID,
		Title:      title,
		Message:    message,
		Type:       t.Type,
		Priority:   t.Priority,
		ActionURL:  req.ActionURL,
		ActionText: req.ActionText,
		ExpiresAt:  req.ExpiresAt,
	}
	if req.Type != "" {
		opts.Type = req.Type
	}
	if req.Priority != "" {
		opts.Priority = req.Priority
	}
	return opts, nil
}
