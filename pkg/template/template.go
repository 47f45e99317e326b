// Package template renders node configuration strings against the
// execution's variables, so message bodies and request payloads can
// reference collected answers.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/atendohq/atendo/pkg/models"
)

// RenderWithExecution renders input with the execution's state: variables,
// the last inbound message and execution identity.
func RenderWithExecution(input string, execution *models.Execution, inbound *models.NormalizedMessage) (string, error) {
	data := map[string]any{
		"variables": execution.Variables,
		"vars":      execution.Variables,
		"execution": map[string]any{
			"id":        execution.ID,
			"flow_id":   execution.FlowID,
			"ticket_id": execution.TicketID,
		},
	}

	if inbound != nil {
		data["message"] = map[string]any{
			"body": inbound.Body,
			"from": inbound.FromAddress,
		}
	}

	return Render(input, data)
}

// Render executes input as a text/template over data.
func Render(input string, data any) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	tmpl, err := template.
		New("node_config").
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).Parse(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", input, err)
	}

	// text/template prints missing map values as "<no value>".
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}
