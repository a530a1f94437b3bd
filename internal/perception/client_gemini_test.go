package perception

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultGeminiConfig("test-key")
	cfg.BaseURL = srv.URL
	cfg.Timeout = 5 * time.Second
	return NewGeminiClientWithConfig(cfg), srv
}

func geminiTextResponse(text string) GeminiResponse {
	return GeminiResponse{
		Candidates: []GeminiCandidate{
			{Content: GeminiContent{Parts: []GeminiPart{{Text: text}}}},
		},
	}
}

func TestCompleteReturnsText(t *testing.T) {
	var gotReq GeminiRequest
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(geminiTextResponse("  hello world  "))
	})

	out, err := client.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "user prompt", gotReq.Contents[0].Parts[0].Text)
	require.NotNil(t, gotReq.SystemInstruction)
	assert.Equal(t, "system prompt", gotReq.SystemInstruction.Parts[0].Text)
	assert.Empty(t, gotReq.GenerationConfig.ResponseMimeType)
}

func TestCompleteWithSchemaSetsResponseFormat(t *testing.T) {
	var gotReq GeminiRequest
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(geminiTextResponse(`{"ok":true}`))
	})

	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ok": map[string]interface{}{"type": "boolean"},
		},
	}
	out, err := client.CompleteWithSchema(context.Background(), "sys", "user", schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, out)

	assert.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMimeType)
	require.NotNil(t, gotReq.GenerationConfig.ResponseSchema)
	assert.Equal(t, "object", gotReq.GenerationConfig.ResponseSchema["type"])
}

func TestCompleteWithSchemaRejectsNilSchema(t *testing.T) {
	client := NewGeminiClient("test-key")
	_, err := client.CompleteWithSchema(context.Background(), "sys", "user", nil)
	require.Error(t, err)
}

func TestCompleteVisionInlinesImages(t *testing.T) {
	var gotReq GeminiRequest
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(geminiTextResponse("TRUE"))
	})

	images := []ImagePart{
		{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}},
		{MIMEType: "image/png", Data: []byte{0x89, 0x50}},
	}
	out, err := client.CompleteVision(context.Background(), "sys", "compare", images, nil)
	require.NoError(t, err)
	assert.Equal(t, "TRUE", out)

	require.Len(t, gotReq.Contents, 1)
	parts := gotReq.Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "compare", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	assert.Equal(t, "/9j/", parts[1].InlineData.Data[:4])
	require.NotNil(t, parts[2].InlineData)
	assert.Equal(t, "image/png", parts[2].InlineData.MIMEType)
}

func TestCompleteRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(geminiTextResponse("recovered"))
	})

	out, err := client.Complete(context.Background(), "", "retry me")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "", "doomed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestCompleteFailsFastOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Complete(context.Background(), "", "bad")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GeminiResponse{
			Error: &GeminiError{Code: 403, Message: "permission denied", Status: "PERMISSION_DENIED"},
		})
	})

	_, err := client.Complete(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewGeminiClient("")
	_, err := client.Complete(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestFetchImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	t.Cleanup(srv.Close)

	img, err := FetchImage(context.Background(), srv.URL+"/photo")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, img.Data)
}

func TestFetchImageMIMEFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{1, 2, 3})
	}))
	t.Cleanup(srv.Close)

	img, err := FetchImage(context.Background(), srv.URL+"/upload/v12/report.webp?sig=abc")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", img.MIMEType)
}

func TestFetchImageNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := FetchImage(context.Background(), srv.URL+"/missing.jpg")
	require.Error(t, err)
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.in))
		})
	}
}
