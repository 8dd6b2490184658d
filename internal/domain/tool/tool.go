// Package tool enumerates the retrieval tools advertised to the LLM provider.
package tool

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Name is one of the fixed tool names.
type Name string

// Tool names.
const (
	SearchCachedAnswers Name = "search_cached_answers"
	SearchWorkspace     Name = "search_workspace"
	GetWorkspacePage    Name = "get_workspace_page"
	SearchDocuments     Name = "search_documents"
	GetDocumentPage     Name = "get_document_page"
)

// Valid reports whether n belongs to the fixed tool set.
func (n Name) Valid() bool {
	switch n {
	case SearchCachedAnswers, SearchWorkspace, GetWorkspacePage, SearchDocuments, GetDocumentPage:
		return true
	}
	return false
}

// Param is one string argument of a tool.
type Param struct {
	Name        string
	Description string
	Required    bool
}

// Definition describes a tool to the provider.
type Definition struct {
	Name        Name
	Description string
	Params      []Param
}

// Catalog returns the definitions of every tool, in a fixed order.
func Catalog() []Definition {
	return []Definition{
		{
			Name: SearchCachedAnswers,
			Description: "Search previously approved answers to security questionnaire questions. " +
				"Check this first: a close match can be reused almost verbatim.",
			Params: []Param{
				{Name: "query", Description: "The question or its key terms", Required: true},
			},
		},
		{
			Name: SearchWorkspace,
			Description: "Search the internal knowledge workspace (security policies, controls, " +
				"procedures). Returns matching pages with ids and short previews.",
			Params: []Param{
				{Name: "query", Description: "Keywords or a control id such as CC6.1", Required: true},
				{Name: "section_filter", Description: "Only pages under a parent section whose title contains this text"},
			},
		},
		{
			Name:        GetWorkspacePage,
			Description: "Read the full content of a workspace page by id, title or control id.",
			Params: []Param{
				{Name: "page_id", Description: "Page id, exact title, alias or control id", Required: true},
			},
		},
		{
			Name: SearchDocuments,
			Description: "Search the public product documentation. Results carry a reference URL " +
				"that can be cited.",
			Params: []Param{
				{Name: "query", Description: "Search terms", Required: true},
				{Name: "section_filter", Description: "Restrict to one documentation section"},
			},
		},
		{
			Name:        GetDocumentPage,
			Description: "Read a documentation page by path, e.g. security/encryption.",
			Params: []Param{
				{Name: "path", Description: "Document path, with or without extension", Required: true},
			},
		},
	}
}

// DecodeArguments parses provider-supplied arguments. Anything that is not
// a JSON object decodes to an empty map.
func DecodeArguments(raw json.RawMessage) map[string]any {
	args := map[string]any{}
	if len(raw) == 0 {
		return args
	}
	if err := json.Unmarshal(raw, &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// StringArg returns args[name] as trimmed text. Numbers and booleans are
// stringified, absent or null values yield "".
func StringArg(args map[string]any, name string) string {
	switch v := args[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
