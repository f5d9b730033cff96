package template

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"strings"
	texttemplate "text/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// Text renders plain text with text/template. Referencing a variable that is
// not in the context is an error.
type Text struct {
	name string
	tmpl *texttemplate.Template
}

// ParseText parses src as a text template.
func ParseText(name, src string) (*Text, error) {
	tmpl, err := texttemplate.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, &RenderError{Template: name, Err: err}
	}
	return &Text{name: name, tmpl: tmpl}, nil
}

// MustText is like ParseText but panics on a parse error.
func MustText(name, src string) *Text {
	t, err := ParseText(name, src)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Text) Name() string { return t.name }

func (t *Text) Merge(ctx Context) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, map[string]any(ctx)); err != nil {
		return "", &RenderError{Template: t.name, Err: err}
	}
	return buf.String(), nil
}

// HTML renders markup with html/template, escaping context values.
type HTML struct {
	name string
	tmpl *htmltemplate.Template
}

// ParseHTML parses src as an HTML template.
func ParseHTML(name, src string) (*HTML, error) {
	tmpl, err := htmltemplate.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, &RenderError{Template: name, Err: err}
	}
	return &HTML{name: name, tmpl: tmpl}, nil
}

// MustHTML is like ParseHTML but panics on a parse error.
func MustHTML(name, src string) *HTML {
	t, err := ParseHTML(name, src)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *HTML) Name() string { return t.name }

func (t *HTML) Merge(ctx Context) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, map[string]any(ctx)); err != nil {
		return "", &RenderError{Template: t.name, Err: err}
	}
	return buf.String(), nil
}

// Markdown executes src as a text template, converts the result to HTML and
// sanitizes it. cid: URLs survive sanitizing so inline images keep working.
type Markdown struct {
	text   *Text
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// ParseMarkdown parses src as a markdown template.
func ParseMarkdown(name, src string) (*Markdown, error) {
	text, err := ParseText(name, src)
	if err != nil {
		return nil, err
	}
	policy := bluemonday.UGCPolicy()
	policy.AllowURLSchemes("cid")
	return &Markdown{
		text:   text,
		md:     goldmark.New(),
		policy: policy,
	}, nil
}

func (t *Markdown) Name() string { return t.text.name }

func (t *Markdown) Merge(ctx Context) (string, error) {
	src, err := t.text.Merge(ctx)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.md.Convert([]byte(src), &buf); err != nil {
		return "", &RenderError{Template: t.Name(), Err: fmt.Errorf("convert markdown: %w", err)}
	}
	return t.policy.Sanitize(buf.String()), nil
}

// LoadFS reads a template file and picks the engine from its extension:
// .txt and .tmpl are text, .html and .htm are HTML, .md is markdown.
func LoadFS(fsys fs.FS, name string) (Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, &RenderError{Template: name, Err: err}
	}

	src := string(content)
	var tmpl Template
	var perr error
	switch strings.ToLower(path.Ext(name)) {
	case ".txt", ".tmpl":
		tmpl, perr = ParseText(name, src)
	case ".html", ".htm":
		tmpl, perr = ParseHTML(name, src)
	case ".md":
		tmpl, perr = ParseMarkdown(name, src)
	default:
		return nil, &RenderError{Template: name, Err: ErrUnknownExtension}
	}
	if perr != nil {
		return nil, perr
	}
	return tmpl, nil
}
