package intake

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed forms.yaml
var formsYAML []byte

// Form names
const (
	FormOrder            = "order"
	FormBudgetRevision   = "budget_revision"
	FormReport           = "report"
	FormTutorApplication = "tutor_application"
	FormPaymentProof     = "payment_proof"
)

// Kind tells the engine how to read an answer
type Kind string

const (
	KindText       Kind = "text"
	KindBudget     Kind = "budget"
	KindAttachment Kind = "attachment"
)

// Question is one prompt of a form
type Question struct {
	Key    string `yaml:"key"`
	Prompt string `yaml:"prompt"`
	Kind   Kind   `yaml:"kind"`
}

// Form is an ordered questionnaire
type Form struct {
	Name          string     `yaml:"-"`
	Title         string     `yaml:"title"`
	Intro         string     `yaml:"intro"`
	TimeoutNotice string     `yaml:"timeout_notice"`
	Questions     []Question `yaml:"questions"`
}

// Greeting renders Intro for the given mention
func (f *Form) Greeting(mention string) string {
	return strings.ReplaceAll(f.Intro, "{mention}", mention)
}

// Forms is the set of questionnaires the bot can run
type Forms map[string]*Form

// Get returns the named form or an error when it is not defined
func (f Forms) Get(name string) (*Form, error) {
	form, ok := f[name]

	if !ok {
		return nil, fmt.Errorf("form %q is not defined", name)
	}
	return form, nil
}

// ParseForms decodes and checks a form set
func ParseForms(data []byte) (Forms, error) {
	forms := make(Forms)

	if err := yaml.Unmarshal(data, &forms); err != nil {
		return nil, fmt.Errorf("decode forms: %w", err)
	}

	for name, form := range forms {
		form.Name = name

		if len(form.Questions) == 0 {
			return nil, fmt.Errorf("form %q has no questions", name)
		}

		seen := make(map[string]bool)
		for i := range form.Questions {
			q := &form.Questions[i]

			if q.Key == "" || q.Prompt == "" {
				return nil, fmt.Errorf("form %q: question %d needs a key and a prompt", name, i+1)
			}
			if seen[q.Key] {
				return nil, fmt.Errorf("form %q: duplicate key %q", name, q.Key)
			}
			seen[q.Key] = true

			switch q.Kind {
			case "":
				q.Kind = KindText
			case KindText, KindBudget, KindAttachment:
			default:
				return nil, fmt.Errorf("form %q: unknown kind %q", name, q.Kind)
			}
		}
	}

	return forms, nil
}

// DefaultForms returns the embedded form set
func DefaultForms() Forms {
	forms, err := ParseForms(formsYAML)

	if err != nil {
		panic(fmt.Sprintf("embedded forms: %v", err))
	}
	return forms
}
