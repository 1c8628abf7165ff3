package handlers

import (
	"errors"
	"fmt"
	"image"
	"log"
	"net/http"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

const streamBoundary = "frame"

// StreamHandler serves the annotated live feed as an MJPEG stream.
type StreamHandler struct {
	cfg        *config.CameraConfig
	registry   *camera.Registry
	controller ControllerFactory
}

func NewStreamHandler(cfg *config.CameraConfig, registry *camera.Registry, controller ControllerFactory) *StreamHandler {
	return &StreamHandler{
		cfg:        cfg,
		registry:   registry,
		controller: controller,
	}
}

// Cameras handles GET /cameras: the configured capture devices.
func (h *StreamHandler) Cameras(w http.ResponseWriter, r *http.Request) {
	type cameraResponse struct {
		Index int    `json:"index"`
		URL   string `json:"url"`
		Open  bool   `json:"open"`
	}
	resp := make([]cameraResponse, 0, len(h.cfg.URLs))
	for i, url := range h.cfg.URLs {
		resp = append(resp, cameraResponse{Index: i, URL: url, Open: h.registry.IsOpen(i)})
	}
	respondJSON(w, http.StatusOK, resp)
}

// cameraIndex resolves the ?camera= parameter, falling back to the
// configured default.
func (h *StreamHandler) cameraIndex(r *http.Request) (int, error) {
	v := r.URL.Query().Get("camera")
	if v == "" {
		return h.cfg.DefaultIndex, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid camera index")
	}
	return n, nil
}

// Feed handles GET /video/feed?camera=N&course=ID: a multipart MJPEG
// response that runs the recognition loop until the viewer disconnects or
// the device dies.
func (h *StreamHandler) Feed(w http.ResponseWriter, r *http.Request) {
	index, err := h.cameraIndex(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	controller, err := h.controller(r.URL.Query().Get("course"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to start recognition")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	emit := func(frame image.Image) error {
		data, err := imaging.EncodeJPEG(frame)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, len(data)); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	src, err := h.registry.Acquire(r.Context(), index)
	if err != nil {
		// No device: show the placeholder once so the viewer is not left
		// with a broken image.
		log.Printf("stream: camera %d unavailable: %v", index, err)
		emit(imaging.ErrorFrame(h.cfg.FrameWidth, h.cfg.FrameHeight, "camera unavailable"))
		return
	}

	if err := controller.Run(r.Context(), src, emit); err != nil {
		if errors.Is(err, camera.ErrDeviceUnavailable) {
			// Drop the dead handle so the next viewer triggers a reopen.
			h.registry.Release(index)
		}
	}
}

// Snapshot handles GET /video/snapshot?camera=N&course=ID: a single
// annotated frame, for dashboards that poll instead of holding a stream
// open. The frame goes through the full recognition pipeline, so a
// snapshot can record attendance just like the live feed.
func (h *StreamHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	index, err := h.cameraIndex(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	controller, err := h.controller(r.URL.Query().Get("course"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to start recognition")
		return
	}

	src, err := h.registry.Acquire(r.Context(), index)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "camera unavailable")
		return
	}
	frame, err := src.ReadFrame(r.Context())
	if err != nil {
		if errors.Is(err, camera.ErrDeviceUnavailable) {
			h.registry.Release(index)
		}
		respondError(w, http.StatusServiceUnavailable, "camera unavailable")
		return
	}

	result, err := controller.ProcessFrame(r.Context(), frame)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "recognition failed")
		return
	}
	data, err := imaging.EncodeJPEG(result.Annotated)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode frame")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}
