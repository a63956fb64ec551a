// Package genai is the adapter for the generative-model provider
// (Gemini-style generateContent REST API). It supports the three profiles
// the orchestrator needs: free-text generation with a system instruction,
// grounded generation with search/maps tools, and schema-constrained JSON
// generation.
package genai

import "context"

// Tool enables a provider-side retrieval tool for grounded generation.
type Tool string

const (
	ToolGoogleSearch Tool = "googleSearch"
	ToolGoogleMaps   Tool = "googleMaps"
)

// Request is one generateContent invocation.
type Request struct {
	Model             string
	Contents          string
	SystemInstruction string
	Tools             []Tool
	ResponseMIMEType  string
	ResponseSchema    map[string]any
}

// GroundingSource is one attributable citation.
type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GroundingChunk is a citation fragment attached to a grounded response.
// Exactly one of Web or Maps is normally set; a chunk with neither is not
// attributable and gets dropped by the orchestrator.
type GroundingChunk struct {
	Web  *GroundingSource `json:"web,omitempty"`
	Maps *GroundingSource `json:"maps,omitempty"`
}

// Result is the provider's answer: concatenated candidate text plus any
// grounding chunks when retrieval tools were enabled.
type Result struct {
	Text            string
	GroundingChunks []GroundingChunk
}

// Generator is the capability interface consumed by the orchestrator.
type Generator interface {
	GenerateContent(ctx context.Context, req Request) (*Result, error)
}
