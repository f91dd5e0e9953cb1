package research

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

const (
	// MaxThemeExcerpts caps how many excerpts are put into a theme prompt.
	MaxThemeExcerpts = 20

	GreetingAnswer = "Hello! Upload a document and ask a research question to get started."

	QueryPromptTmpl = `You are an AI research assistant helping with document analysis. Use the following excerpts:

{{range $i, $e := .Excerpts}}Excerpt {{inc $i}}:
{{$e}}

{{end}}Question: {{.Question}}

Answer based only on the excerpts.`

	FallbackPromptTmpl = `The user asked: '{{.Question}}'. Respond helpfully, even without documents.`

	ThemePromptTmpl = `You are an AI assistant specializing in document research. Identify 2-3 major themes from the following excerpts.
{{if .Query}}User Query: {{.Query}}

{{end}}Excerpts:
{{range $i, $e := .Excerpts}}Excerpt {{inc $i}} (Doc: {{$e.DocID}}): {{trim $e.Text}}

{{end}}Extract 2-3 key themes.
Each theme should include:
- A short title
- A 2-3 sentence summary
- A list of supporting document IDs
Return response in this JSON format:
{
  "Theme 1": {"summary": "...", "docs": ["DOC001", "DOC002"]},
  "Theme 2": {"summary": "...", "docs": ["DOC003"]}
}`
)

var (
	funcs = template.FuncMap{
		"inc":  func(i int) int { return i + 1 },
		"trim": strings.TrimSpace,
	}

	queryPrompt    = template.Must(template.New("query").Funcs(funcs).Parse(QueryPromptTmpl))
	fallbackPrompt = template.Must(template.New("fallback").Funcs(funcs).Parse(FallbackPromptTmpl))
	themePrompt    = template.Must(template.New("themes").Funcs(funcs).Parse(ThemePromptTmpl))

	greetings = map[string]struct{}{"hi": {}, "hello": {}, "hey": {}}
)

// Excerpt is one chunk shown to the LLM in a theme prompt.
type Excerpt struct {
	DocID string
	Text  string
}

// QueryPromptData holds the data for QueryPromptTmpl and FallbackPromptTmpl
type QueryPromptData struct {
	Question string
	Excerpts []string
}

// ThemePromptData holds the data for ThemePromptTmpl
type ThemePromptData struct {
	Query    string
	Excerpts []Excerpt
}

// BuildQueryPrompt renders the grounded question prompt.
func BuildQueryPrompt(question string, excerpts []string) (string, error) {
	return render(queryPrompt, QueryPromptData{Question: question, Excerpts: excerpts})
}

// BuildFallbackPrompt renders the prompt used when no document matched.
func BuildFallbackPrompt(question string) (string, error) {
	return render(fallbackPrompt, QueryPromptData{Question: question})
}

// BuildThemePrompt renders the theme extraction prompt with at most MaxThemeExcerpts excerpts.
func BuildThemePrompt(query string, excerpts []Excerpt) (string, error) {
	if len(excerpts) > MaxThemeExcerpts {
		excerpts = excerpts[:MaxThemeExcerpts]
	}
	return render(themePrompt, ThemePromptData{Query: query, Excerpts: excerpts})
}

// IsGreeting reports whether q is a bare greeting.
func IsGreeting(q string) bool {
	_, ok := greetings[strings.ToLower(strings.TrimSpace(q))]
	return ok
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}
