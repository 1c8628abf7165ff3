package camera

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// mjpegDialTimeout bounds only the initial connect, not the stream itself.
const mjpegDialTimeout = 10 * time.Second

// MJPEGSource reads frames from an HTTP multipart/x-mixed-replace stream,
// the wire format of IP cameras and webcam gateways. Reads are serialized,
// so the registry can hand one source to several viewers; each viewer then
// sees a disjoint subset of the frames.
type MJPEGSource struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	body   interface{ Close() error }
	parts  *multipart.Reader
	cancel context.CancelFunc
}

// OpenMJPEG connects to an MJPEG stream URL. The returned source is bound
// to the stream connection; a read failure means the device is gone and the
// source must be released.
func OpenMJPEG(ctx context.Context, url string) (*MJPEGSource, error) {
	if url == "" {
		return nil, fmt.Errorf("empty stream URL: %w", ErrDeviceUnavailable)
	}

	// The stream is long-lived, so the request context must outlive this
	// call. Cancel belongs to Close.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build stream request: %w", err)
	}

	// No overall timeout, the stream is endless; only the connect phase
	// is bounded.
	client := &http.Client{
		Transport: &http.Transport{ResponseHeaderTimeout: mjpegDialTimeout},
	}
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect to %s: %w", url, ErrDeviceUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream %s returned %d: %w", url, resp.StatusCode, ErrDeviceUnavailable)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream %s is not multipart MJPEG: %w", url, ErrDeviceUnavailable)
	}

	return &MJPEGSource{
		url:    url,
		client: client,
		body:   resp.Body,
		parts:  multipart.NewReader(resp.Body, params["boundary"]),
		cancel: cancel,
	}, nil
}

// ReadFrame decodes the next JPEG part from the stream. One multipart
// reader feeds every caller, so the part must be consumed whole before the
// next read starts.
func (s *MJPEGSource) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	part, err := s.parts.NextPart()
	if err != nil {
		return nil, fmt.Errorf("stream %s ended: %w", s.url, ErrDeviceUnavailable)
	}
	defer part.Close()

	img, err := jpeg.Decode(part)
	if err != nil {
		return nil, fmt.Errorf("decode frame from %s: %w", s.url, err)
	}
	return img, nil
}

// Close tears down the stream connection. It does not wait for an
// in-flight ReadFrame; the cancel unblocks it with a read error instead.
func (s *MJPEGSource) Close() error {
	s.cancel()
	return s.body.Close()
}
