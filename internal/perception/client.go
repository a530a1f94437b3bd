package perception

import (
	"context"
)

// LLMClient abstracts the model API for evaluators, the judge, the
// duplicate resolver and the chat scorers. Implementations must be safe
// for concurrent use.
type LLMClient interface {
	// Complete sends a plain text prompt and returns the completion text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CompleteWithSchema enforces a JSON response schema. The returned
	// string is the raw JSON text produced by the model.
	CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error)

	// CompleteVision sends a prompt together with one or more images.
	// schema may be nil for free-form text responses.
	CompleteVision(ctx context.Context, systemPrompt, userPrompt string, images []ImagePart, schema map[string]interface{}) (string, error)
}

// ImagePart is an image attached to a vision request.
type ImagePart struct {
	MIMEType string
	Data     []byte
}
