package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/imaging"
)

const defaultVisionURL = "http://localhost:8000"

// embedMaxDim caps the face crop sent to the embedding endpoint. The model
// shrinks its input to a small square anyway, so bigger crops only cost
// upload bandwidth.
const embedMaxDim = 512

// Client talks to the vision service that hosts the face detection and
// embedding models. It implements both Detector and Embedder.
type Client struct {
	baseURL     string
	strictEmbed bool
	detectMin   float64
	client      *http.Client
}

// NewClient creates a vision service client. strictEmbed controls
// whether the embed endpoint rejects crops without a detectable face or
// embeds them best-effort.
func NewClient(baseURL string, strictEmbed bool, detectMin float64) *Client {
	if baseURL == "" {
		baseURL = defaultVisionURL
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		strictEmbed: strictEmbed,
		detectMin:   detectMin,
		client:      &http.Client{},
	}
}

// detectResponse is the detection endpoint payload.
type detectResponse struct {
	FacesCount int `json:"faces_count"`
	Faces      []struct {
		BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2]
		DetScore float64   `json:"det_score"`
	} `json:"faces"`
}

// embedResponse is the embedding endpoint payload.
type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Detect returns the face bounding boxes found in a frame, clamped to
// frame bounds and filtered by the configured confidence floor.
func (c *Client) Detect(ctx context.Context, frame image.Image) ([]Box, error) {
	body, err := c.postImage(ctx, "/detect", frame, nil)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse detection response: %w", err)
	}

	bounds := frame.Bounds()
	boxes := make([]Box, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 || f.DetScore < c.detectMin {
			continue
		}
		box := Box{
			X1:    clamp(int(f.BBox[0]), bounds.Min.X, bounds.Max.X),
			Y1:    clamp(int(f.BBox[1]), bounds.Min.Y, bounds.Max.Y),
			X2:    clamp(int(f.BBox[2]), bounds.Min.X, bounds.Max.X),
			Y2:    clamp(int(f.BBox[3]), bounds.Min.Y, bounds.Max.Y),
			Score: f.DetScore,
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// Embed computes the embedding for one face crop.
func (c *Client) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	fields := map[string]string{
		"enforce_detection": strconv.FormatBool(c.strictEmbed),
	}
	body, err := c.postImage(ctx, "/embed", fitWithin(face, embedMaxDim), fields)
	if err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return resp.Embedding, nil
}

// postImage JPEG-encodes the image into a multipart form and posts it.
func (c *Client) postImage(ctx context.Context, endpoint string, img image.Image, fields map[string]string) ([]byte, error) {
	imageData, err := imaging.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// fitWithin scales an image down so its longer side is at most maxDim,
// keeping the aspect ratio. Images already within the limit pass through
// untouched.
func fitWithin(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}
	if w >= h {
		h = max(h*maxDim/w, 1)
		w = maxDim
	} else {
		w = max(w*maxDim/h, 1)
		h = maxDim
	}
	return imaging.Resize(img, w, h)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
