package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

const DefaultRestaurant = "Vaiu Voice Agent"

var (
	//go:embed template/system.txt
	systemRaw string

	systemTmpl = template.Must(template.New("system").Option("missingkey=error").Parse(systemRaw))
)

type Vars struct {
	Restaurant string
}

// System renders the assistant's system prompt.
func System(v Vars) (string, error) {
	if strings.TrimSpace(v.Restaurant) == "" {
		v.Restaurant = DefaultRestaurant
	}
	var buf bytes.Buffer
	if err := systemTmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
