package chat

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/rayhq/docuchat/pkg/llm"
)

const (
	toolSearchDocuments = "search_documents"
	toolSearchWeb       = "search_web"
)

func searchDocumentsTool() llm.Tool {
	return llm.Tool{
		Name:        toolSearchDocuments,
		Description: "Search the user's document library for passages relevant to a query.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"minLength":   1,
					"description": "What to look for in the documents.",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"maximum":     20,
					"description": "How many passages to return.",
				},
			},
			"required": []interface{}{"query"},
		},
	}
}

func searchWebTool() llm.Tool {
	return llm.Tool{
		Name:        toolSearchWeb,
		Description: "Search the live web for up-to-date information.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"minLength":   1,
					"description": "The web search query.",
				},
			},
			"required": []interface{}{"query"},
		},
	}
}

// validateArguments checks tool-call arguments against the tool's JSON
// schema. A schema violation is described in the returned error so it
// can be fed back to the model as a tool result.
func validateArguments(tool llm.Tool, args map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(tool.InputSchema)
	docLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		msg := "invalid arguments:"
		for _, e := range result.Errors() {
			msg += " " + e.String() + ";"
		}
		return fmt.Errorf("%s", msg)
	}

	return nil
}
