package generation

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
)

// Request is one call to a language model.
type Request struct {
	// Purpose names the kind of content, e.g. "backstory". It selects the
	// fallback vocabulary of LocalGenerator and appears in logs.
	Purpose string

	// System is an optional system instruction.
	System string

	// Prompt is the user prompt.
	Prompt string

	// MaxWords is a soft limit passed to the model in the prompt.
	MaxWords int
}

// Validate checks the request has something to generate from.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Prompt is a named text template rendered into a Request.
type Prompt struct {
	purpose  string
	system   string
	maxWords int
	tmpl     *template.Template
}

// NewPrompt parses text as a template. Parsing errors are returned wrapped in
// ErrInvalidConfig.
func NewPrompt(purpose, system, text string, maxWords int) (*Prompt, error) {
	tmpl, err := template.New(purpose).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s prompt: %v", ErrInvalidConfig, purpose, err)
	}
	return &Prompt{purpose: purpose, system: system, maxWords: maxWords, tmpl: tmpl}, nil
}

// MustPrompt is like NewPrompt but panics on error. It is meant for
// package-level prompt definitions.
func MustPrompt(purpose, system, text string, maxWords int) *Prompt {
	p, err := NewPrompt(purpose, system, text, maxWords)
	if err != nil {
		panic(err)
	}
	return p
}

// Render executes the template with data.
func (p *Prompt) Render(data any) (Request, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return Request{}, fmt.Errorf("render %s prompt: %w", p.purpose, err)
	}
	req := Request{
		Purpose:  p.purpose,
		System:   p.system,
		Prompt:   strings.TrimSpace(buf.String()),
		MaxWords: p.maxWords,
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}
