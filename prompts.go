package pagelens

import (
	"fmt"
	"strings"

	"github.com/tyler-sommer/stick"
)

// Built-in task instructions. The proofread template pins the structured
// {"errors": [...]} output contract that ParseRecords and the streaming
// extractor expect.
var defaultTaskTemplates = map[string]string{
	"proofread": `You are a meticulous proofreader. Find typos, grammar mistakes and style issues in the document below.
Respond with JSON only, in exactly this shape:
{"errors": [{"kind": "typo|grammar|styleIssue", "severity": "error|warning|info", "original": "...", "suggestion": "...", "explanation": "..."}]}
Return {"errors": []} when the document is clean.`,

	"summarize": `Summarize the document below in at most {{ sentences }} sentences. Keep the original tone and do not add information.`,

	"ask": `Answer the question using only the document below. If the document does not contain the answer, say so.
Question: {{ question }}`,
}

// InstructionBuilder renders task instructions from Twig templates.
type InstructionBuilder struct {
	env       *stick.Env
	templates map[string]string
	vars      map[string]stick.Value
}

// InstructionOption configures an InstructionBuilder.
type InstructionOption func(*InstructionBuilder) error

// WithTaskTemplates lets you inject or override templates from an in-memory map.
func WithTaskTemplates(m map[string]string) InstructionOption {
	return func(b *InstructionBuilder) error {
		for k, v := range m {
			b.templates[k] = v
		}
		return nil
	}
}

// WithTaskVar adds a variable available in all templates.
func WithTaskVar(key string, value any) InstructionOption {
	return func(b *InstructionBuilder) error {
		b.vars[key] = value
		return nil
	}
}

// NewInstructionBuilder builds a renderer preloaded with the built-in task
// templates.
func NewInstructionBuilder(opts ...InstructionOption) (*InstructionBuilder, error) {
	b := &InstructionBuilder{
		env:       stick.New(nil),
		templates: make(map[string]string),
		vars:      make(map[string]stick.Value),
	}
	for k, v := range defaultTaskTemplates {
		b.templates[k] = v
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// AddTemplate updates or inserts one template.
func (b *InstructionBuilder) AddTemplate(task, tpl string) { b.templates[task] = tpl }

// Instruction renders the template for the given task with optional
// per-call variables layered over the builder-wide ones.
func (b *InstructionBuilder) Instruction(task string, vars map[string]stick.Value) (string, error) {
	tpl, ok := b.templates[task]
	if !ok {
		return "", fmt.Errorf("task %q not found", task)
	}

	templateCtx := make(map[string]stick.Value)
	templateCtx["task"] = task
	for k, v := range b.vars {
		templateCtx[k] = v
	}
	for k, v := range vars {
		templateCtx[k] = v
	}

	var out strings.Builder
	if err := b.env.Execute(tpl, &out, templateCtx); err != nil {
		return "", fmt.Errorf("execute %q: %w", task, err)
	}
	return out.String(), nil
}

// BuildPrompt joins the rendered instruction and the document into the
// final payload sent to a provider.
func BuildPrompt(instruction, content string) string {
	return instruction + "\n\n<<DOC>>\n" + content + "\n<<END>>"
}
