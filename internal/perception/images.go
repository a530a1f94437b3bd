package perception

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Images larger than this are rejected rather than inlined.
const maxImageBytes = 8 << 20

var imageHTTPClient = &http.Client{Timeout: 20 * time.Second}

// FetchImage downloads an image URL and returns it as an inline part.
// The MIME type comes from the Content-Type header, falling back to the
// URL extension, then to image/jpeg.
func FetchImage(ctx context.Context, url string) (ImagePart, error) {
	if strings.TrimSpace(url) == "" {
		return ImagePart{}, fmt.Errorf("image url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return ImagePart{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := imageHTTPClient.Do(req)
	if err != nil {
		return ImagePart{}, fmt.Errorf("image fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ImagePart{}, fmt.Errorf("image fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return ImagePart{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return ImagePart{}, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return ImagePart{}, fmt.Errorf("image is empty")
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = guessImageMIME(url)
	}

	return ImagePart{MIMEType: mimeType, Data: data}, nil
}

func guessImageMIME(url string) string {
	lower := strings.ToLower(url)
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func encodeImage(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
