package caption

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generateURL = regexp.MustCompile(`/models/[^/]+:generateContent`)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func modelReply(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	}
}

// newMockedCaptioner returns a Captioner whose HTTP traffic goes to a
// httpmock transport.
func newMockedCaptioner(t *testing.T) (*Captioner, *httpmock.MockTransport) {
	t.Helper()

	mock := httpmock.NewMockTransport()

	c, err := New(context.Background(), Options{
		APIKey:     "test-key",
		BaseURL:    "https://gemini.test/",
		HTTPClient: &http.Client{Transport: mock},
	}, testLogger())
	require.NoError(t, err)

	return c, mock
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Options{}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNew_Defaults(t *testing.T) {
	c, _ := newMockedCaptioner(t)

	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultPrompt, c.prompt)
}

func TestDescribe_SendsMediaAndPrompt(t *testing.T) {
	c, mock := newMockedCaptioner(t)

	var body string

	mock.RegisterRegexpResponder(http.MethodPost, generateURL, func(r *http.Request) (*http.Response, error) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		body = string(raw)
		assert.Contains(t, r.URL.Path, DefaultModel)

		return httpmock.NewJsonResponse(http.StatusOK, modelReply("  \"Chasing the last light\"\n"))
	})

	path := writeFile(t, "sunset.png", []byte("\x89PNG\r\n\x1a\nfake"))

	got, err := c.Describe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Chasing the last light", got)

	assert.Contains(t, body, `"mimeType":"image/png"`)
	assert.Contains(t, body, "Only return the caption")
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestDescribe_NormalizesToNFC(t *testing.T) {
	c, mock := newMockedCaptioner(t)

	// "e" followed by a combining acute accent.
	mock.RegisterRegexpResponder(http.MethodPost, generateURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, modelReply("Cafe\u0301 mornings")))

	got, err := c.Describe(context.Background(), writeFile(t, "cafe.jpg", []byte{0xff, 0xd8, 0xff}))
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9 mornings", got)
}

func TestDescribe_EmptyReply(t *testing.T) {
	c, mock := newMockedCaptioner(t)

	mock.RegisterRegexpResponder(http.MethodPost, generateURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, modelReply("   ")))

	_, err := c.Describe(context.Background(), writeFile(t, "a.jpg", []byte{0xff, 0xd8, 0xff}))
	assert.ErrorIs(t, err, ErrEmptyCaption)
}

func TestDescribe_RemoteError(t *testing.T) {
	c, mock := newMockedCaptioner(t)

	mock.RegisterRegexpResponder(http.MethodPost, generateURL,
		httpmock.NewJsonResponderOrPanic(http.StatusBadRequest, map[string]any{
			"error": map[string]any{
				"code":    400,
				"message": "API key not valid. Please pass a valid API key.",
				"status":  "INVALID_ARGUMENT",
			},
		}))

	_, err := c.Describe(context.Background(), writeFile(t, "a.jpg", []byte{0xff, 0xd8, 0xff}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "caption: generating with "+DefaultModel)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestDescribe_MissingFile(t *testing.T) {
	c, mock := newMockedCaptioner(t)

	_, err := c.Describe(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestPing(t *testing.T) {
	c, mock := newMockedCaptioner(t)

	mock.RegisterRegexpResponder(http.MethodPost, generateURL, func(r *http.Request) (*http.Response, error) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "inlineData")

		return httpmock.NewJsonResponse(http.StatusOK, modelReply("Sea, sky, and a little gold."))
	})

	got, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sea, sky, and a little gold.", got)
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"  padded \n", "padded"},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{`"unbalanced`, `"unbalanced`},
		{`"`, `"`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, clean(tt.in), "clean(%q)", tt.in)
	}
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "image/jpeg", mimeType("a.JPG", nil))
	assert.Equal(t, "video/mp4", mimeType("clip.mp4", nil))
	assert.Equal(t, "video/quicktime", mimeType("clip.MOV", nil))
	assert.Equal(t, "image/png", mimeType("noext", []byte("\x89PNG\r\n\x1a\n")))
}
