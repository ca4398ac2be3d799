package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/menta2k/arch-designer/pkg/processing"
	"github.com/menta2k/arch-designer/pkg/types"
)

// DefaultModel is the image-capable model used when none is configured
const DefaultModel = "gemini-2.5-flash-image"

// DefaultTimeout bounds a request whose context carries no deadline
const DefaultTimeout = 120 * time.Second

// ErrMissingAPIKey is returned when no API key is configured
var ErrMissingAPIKey = errors.New("gemini API key is not set")

// APIError is a failed call to the Gemini API
type APIError struct {
	Message string
	Err     error
}

func (e *APIError) Error() string {
	return "Gemini API Error: " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// modelsAPI is the part of genai.Models the client uses
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds client settings
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client wraps the Gemini API client
type Client struct {
	models  modelsAPI
	model   string
	timeout time.Duration
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return newWithModels(gc.Models, cfg), nil
}

func newWithModels(models modelsAPI, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{models: models, model: cfg.Model, timeout: cfg.Timeout}
}

// Model returns the model name requests are sent to
func (c *Client) Model() string {
	return c.model
}

// Generate sends the images followed by the instruction text in a single
// user turn and returns the first inline image of the first candidate.
func (c *Client) Generate(ctx context.Context, images []types.EditedImage, text string) (*types.GeneratedImage, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	contents, err := buildContents(images, text)
	if err != nil {
		return nil, err
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, &APIError{Message: apiMessage(err), Err: err}
	}

	return extractImage(resp), nil
}

// buildContents lays out the request: one inline part per image in the
// given order, then the text part
func buildContents(images []types.EditedImage, text string) ([]*genai.Content, error) {
	parts := make([]*genai.Part, 0, len(images)+1)
	for i, img := range images {
		data, err := processing.DecodeEdited(img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, img.MimeType))
	}
	parts = append(parts, genai.NewPartFromText(text))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

// extractImage returns the first part carrying inline data, or nil
func extractImage(resp *genai.GenerateContentResponse) *types.GeneratedImage {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return nil
	}
	for _, part := range cand.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mimeType := part.InlineData.MIMEType
		if mimeType == "" {
			mimeType = processing.DetectMimeType(part.InlineData.Data)
		}
		return &types.GeneratedImage{Data: part.InlineData.Data, MimeType: mimeType}
	}
	return nil
}

// apiMessage prefers the server's message over the formatted error
func apiMessage(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Message != "" {
		return apiErrPtr.Message
	}
	return err.Error()
}
