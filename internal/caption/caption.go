// Package caption generates post captions from media using the Gemini API.
//
// A Captioner is stateless between calls: each Describe uploads the media
// inline with the prompt and returns the model's text, cleaned up for
// posting. There is no retry; a failed call surfaces to the caller.
package caption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
	"google.golang.org/genai"
)

// Defaults used when the config leaves the fields empty.
const (
	DefaultModel  = "gemini-2.0-flash-001"
	DefaultPrompt = "Generate a creative, concise Instagram caption for this image. " +
		"Only return the caption, nothing else."

	pingPrompt = "Write a short caption for a photo of a sunset over the sea. " +
		"Only return the caption, nothing else."

	// maxInlineBytes is the request size limit for inline media.
	maxInlineBytes = 20 << 20
)

var (
	// ErrEmptyCaption is returned when the model answers without any text.
	ErrEmptyCaption = errors.New("caption: model returned an empty caption")

	// ErrNoAPIKey is returned by New when no API key is configured.
	ErrNoAPIKey = errors.New("caption: API key is required (set gemini_api_key or GEMINI_API_KEY)")

	// ErrTooLarge is returned when the media exceeds the inline upload limit.
	ErrTooLarge = errors.New("caption: media too large to send inline")
)

// Options configures a Captioner.
type Options struct {
	APIKey string
	Model  string
	Prompt string

	// BaseURL overrides the API endpoint. Empty means the SDK default.
	BaseURL string

	// HTTPClient overrides the transport. Tests use this to mock responses.
	HTTPClient *http.Client
}

// Captioner asks a generative model to describe media.
type Captioner struct {
	client *genai.Client
	model  string
	prompt string
	logger *slog.Logger
}

// New creates a Captioner backed by the Gemini API.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Captioner, error) {
	if opts.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	if logger == nil {
		logger = slog.Default()
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}

	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("caption: creating client: %w", err)
	}

	c := &Captioner{
		client: client,
		model:  opts.Model,
		prompt: opts.Prompt,
		logger: logger,
	}

	if c.model == "" {
		c.model = DefaultModel
	}

	if c.prompt == "" {
		c.prompt = DefaultPrompt
	}

	return c, nil
}

// Model returns the model name requests are sent to.
func (c *Captioner) Model() string {
	return c.model
}

// Describe returns a caption for the photo or video at path.
func (c *Captioner) Describe(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("caption: %w", err)
	}

	if info.Size() > maxInlineBytes {
		return "", fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, filepath.Base(path), info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("caption: reading %s: %w", path, err)
	}

	mime := mimeType(path, data)

	c.logger.Debug("requesting caption",
		slog.String("model", c.model),
		slog.String("path", path),
		slog.String("mime", mime),
		slog.Int("bytes", len(data)),
	)

	return c.generate(ctx, []*genai.Part{
		genai.NewPartFromBytes(data, mime),
		genai.NewPartFromText(c.prompt),
	})
}

// Ping sends a text-only request. It checks that the key and model work
// without needing any media.
func (c *Captioner) Ping(ctx context.Context) (string, error) {
	return c.generate(ctx, []*genai.Part{genai.NewPartFromText(pingPrompt)})
}

func (c *Captioner) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("caption: generating with %s: %w", c.model, err)
	}

	text := clean(result.Text())
	if text == "" {
		return "", ErrEmptyCaption
	}

	return text, nil
}

// clean trims whitespace and wrapping quotes from model output and
// normalizes it to NFC so the posted text compares equal to what the user
// would type.
func clean(s string) string {
	s = strings.TrimSpace(s)

	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}

	return norm.NFC.String(s)
}

// mimeType picks the content type for inline upload. The extension wins;
// sniffing covers files without one.
func mimeType(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	}

	return http.DetectContentType(data)
}
