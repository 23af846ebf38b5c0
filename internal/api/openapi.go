package api

import (
	"fmt"

	"github.com/mattjoyce/relaycmd/internal/registry"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document with an execute operation
// for every command.
func buildOpenAPIDoc(title string, commands []registry.View) map[string]any {
	paths := map[string]any{}
	for _, cmd := range commands {
		paths[fmt.Sprintf("/commands/%s/execute", cmd.Name)] = map[string]any{
			"post": executeOperation(cmd),
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   title,
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func executeOperation(cmd registry.View) map[string]any {
	summary := cmd.Description
	if summary == "" {
		summary = "execute " + cmd.Name
	}
	return map[string]any{
		"operationId": cmd.Name + "__execute",
		"summary":     summary,
		"tags":        []string{"commands"},
		"parameters": []any{
			map[string]any{
				"name":   "wait",
				"in":     "query",
				"schema": map[string]any{"type": "boolean"},
			},
		},
		"responses": map[string]any{
			"200": map[string]any{"description": "Execution settled"},
			"202": map[string]any{"description": "Execution dispatched"},
			"403": map[string]any{"description": "Insufficient scope"},
			"404": map[string]any{"description": "Unknown command"},
			"409": map[string]any{"description": "Command cannot execute"},
		},
		"security": []any{map[string]any{"BearerAuth": []string{}}},
	}
}
