package generation

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/calcforge/internal/workitem"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Library holds the instructions, per-category guidance and structural
// example sent with every generation request.
type Library struct {
	System     string            `yaml:"system"`
	Categories map[string]string `yaml:"categories"`
	Example    string            `yaml:"example"`
}

// Prompt is one rendered request: the system instructions and the user turn.
type Prompt struct {
	System string
	User   string
}

// LoadLibrary parses the embedded prompt library and checks that every
// declared category has guidance.
func LoadLibrary() (*Library, error) {
	return parseLibrary(promptsYAML)
}

func parseLibrary(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("generation: parse prompt library: %w", err)
	}
	if strings.TrimSpace(lib.System) == "" {
		return nil, fmt.Errorf("generation: prompt library has no system text")
	}
	if strings.TrimSpace(lib.Example) == "" {
		return nil, fmt.Errorf("generation: prompt library has no example")
	}
	for _, category := range workitem.Categories {
		if strings.TrimSpace(lib.Categories[string(category)]) == "" {
			return nil, fmt.Errorf("generation: prompt library has no guidance for %s", category)
		}
	}
	return &lib, nil
}

// Prompt renders the request for item.
func (l *Library) Prompt(item workitem.Item) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the %q calculator (category: %s).\n\n", item.Name, item.Category)
	b.WriteString("Domain guidance:\n")
	b.WriteString(strings.TrimSpace(l.Categories[string(item.Category)]))
	b.WriteString("\n\n")
	if words := avoidList(item); words != "" {
		fmt.Fprintf(&b, "Never use these words from other domains: %s.\n\n", words)
	}
	b.WriteString("Follow the structure of this example exactly:\n```go\n")
	b.WriteString(strings.TrimSpace(l.Example))
	b.WriteString("\n```\n")
	return Prompt{System: strings.TrimSpace(l.System), User: b.String()}
}

func avoidList(item workitem.Item) string {
	return strings.Join(workitem.ForeignTerms(item.Category, workitem.Normalize(item.Name)), ", ")
}
