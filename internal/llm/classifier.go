package llm

import (
	"context"
	"encoding/json"

	"github.com/jonathan/libdb/internal/schemas"
	"github.com/jonathan/libdb/internal/types"
)

// Classifier adapts a Client to the pipeline's classifier capability: it sends the request
// segments, validates the answer against the analysis response schema and decodes it.
type Classifier struct {
	client Client
}

// NewClassifier creates a classifier backed by client
func NewClassifier(client Client) *Classifier {
	return &Classifier{client: client}
}

// Classify sends req and decodes the structured answer. Transport failures are returned
// as *ClassificationError, unparseable answers as *ResponseShapeError.
func (c *Classifier) Classify(ctx context.Context, req types.ClassificationRequest) (types.Classification, error) {
	raw, err := c.client.GenerateJSON(ctx, req.Segments, GenerateOptions{
		Tier:        ClassificationTier,
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil {
		return types.Classification{}, &ClassificationError{Message: "failed to classify library", Cause: err}
	}
	return ParseClassification(raw)
}

// ParseClassification decodes a classifier answer into its two-field shape
func ParseClassification(raw string) (types.Classification, error) {
	body := []byte(CleanJSONBlock(raw))
	if err := schemas.Validate(schemas.AnalysisResponse, body); err != nil {
		return types.Classification{}, &ResponseShapeError{Raw: raw, Cause: err}
	}

	var out types.Classification
	if err := json.Unmarshal(body, &out); err != nil {
		return types.Classification{}, &ResponseShapeError{Raw: raw, Cause: err}
	}
	return out, nil
}
