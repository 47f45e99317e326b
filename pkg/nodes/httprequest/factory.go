package httprequest

import (
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(id string, config map[string]any) (protocol.Node, error) {
	return NewHTTPRequestNode(id, config)
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindHTTPRequest
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "URL to request. Supports templating with {{.variables.name}}",
			},
			"method": map[string]any{
				"type":    "string",
				"default": "GET",
				"enum":    []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers. Values support templating",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body. Supports templating",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Request timeout in seconds",
				"default":     30,
				"minimum":     1,
				"maximum":     300,
			},
			"result_variable": map[string]any{
				"type":        "string",
				"description": "Variable the response is captured into",
				"default":     defaultResultVariable,
			},
			"retries": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"attempts": map[string]any{
						"type":    "number",
						"default": 1,
						"minimum": 1,
						"maximum": 10,
					},
					"delay": map[string]any{
						"type":        "number",
						"description": "Delay between retries in milliseconds",
						"default":     0,
						"minimum":     0,
					},
				},
			},
		},
		"required": []string{"url"},
	}
}
