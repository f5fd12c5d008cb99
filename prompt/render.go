package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// DefaultInstructions is the system prompt used when none is configured.
const DefaultInstructions = "You are one member of a network of agents trying to work out the correct answer to a shared question. " +
	"Each round you see what your neighbours currently believe and why. Answer only with a single JSON object."

// DefaultTemplate is the user prompt used when none is configured.
const DefaultTemplate = `{{- with .Params.question}}Question: {{.}}
{{end -}}
{{- if .Choices}}Possible answers: {{join ", " .Choices}}
{{end -}}
{{- with .Current}}You currently believe {{quote .Choice}}{{with .Justification}} because "{{.}}"{{end}}.
{{end -}}
{{- range .Observations.Entries}}{{if .Observed}}Neighbour {{.Neighbor}} believes {{quote .Choice}}{{with .Justification}} because '{{.}}'{{end}}.
{{end}}{{end -}}
Round {{.Round}}. Consider whether you should update your belief. Give your answer and reasoning in JSON format even if your answer is unchanged: {{.Format}}`

// Context is the data a template is rendered against.
type Context struct {
	Agent        core.AgentID
	Round        int
	Observations core.ObservationSet
	History      []core.Decision
	Current      *core.Decision
	Params       map[string]any
	Choices      []string
	Format       string
}

// NewContext builds a Context from a decision input.
func NewContext(in core.DecisionInput, choices []string) Context {
	ctx := Context{
		Agent:        in.Agent,
		Round:        in.Round,
		Observations: in.Observations,
		History:      in.History,
		Params:       in.Params,
		Choices:      choices,
		Format:       FormatString(DecisionSchema()),
	}
	if cur, ok := in.Current(); ok {
		ctx.Current = &cur
	}
	if ctx.Params == nil {
		ctx.Params = map[string]any{}
	}
	return ctx
}

// Renderer renders a Context with a parsed template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses text. An empty text selects DefaultTemplate.
func NewRenderer(text string) (*Renderer, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("prompt").Funcs(funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the template against c.
func (r *Renderer) Render(c Context) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

var funcs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	},
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
	"quote": func(s string) string { return fmt.Sprintf("%q", s) },
}
