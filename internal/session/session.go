// Package session drives the live-recognition loop for one video stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/recognize"
	"github.com/kozaktomas/face-attendance/internal/schedule"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// Outcome is the terminal label for one recognized face in one frame.
type Outcome int

const (
	// Unknown: no usable embedding or no identity within the threshold.
	Unknown Outcome = iota
	// RecentSuppressed: the identity was evaluated less than the dedup
	// window ago; nothing else runs for it this frame.
	RecentSuppressed
	// NoActiveSession: matched, but no course is in session right now.
	NoActiveSession
	// NotEnrolled: matched, but the student is not enrolled in the course.
	NotEnrolled
	// AlreadyMarkedToday: matched and enrolled, mark already exists today.
	AlreadyMarkedToday
	// MarkedNow: a new attendance mark was persisted this frame.
	MarkedNow
)

func (o Outcome) String() string {
	switch o {
	case RecentSuppressed:
		return "recent"
	case NoActiveSession:
		return "no session"
	case NotEnrolled:
		return "not enrolled"
	case AlreadyMarkedToday:
		return "already marked"
	case MarkedNow:
		return "marked"
	default:
		return "unknown"
	}
}

const (
	// DefaultSampleEvery runs full recognition on every Nth frame; the
	// frames between only get detection boxes.
	DefaultSampleEvery = 10
	// DefaultDedupWindow suppresses re-evaluation of an identity that was
	// resolved recently on the same stream.
	DefaultDedupWindow = 30 * time.Second
)

// FaceOutcome is the per-face result attached to a processed frame.
type FaceOutcome struct {
	Box        vision.Box
	Outcome    Outcome
	IdentityID string
	Confidence float64
}

// FrameResult is what one loop iteration produces.
type FrameResult struct {
	Annotated image.Image
	Faces     []FaceOutcome
	// Recognized reports whether this frame ran the full pipeline or only
	// detection.
	Recognized bool
}

// Config wires a Controller. Store, Engine, Resolver, Detector and Embedder
// are required; the rest defaults.
type Config struct {
	Detector vision.Detector
	Embedder vision.Embedder
	Engine   *recognize.Engine
	Resolver *schedule.Resolver
	Store    database.Store

	// CourseID pins the stream to one course instead of schedule lookup.
	CourseID string
	// CaptureDir receives the face crop saved with each new mark. Empty
	// disables capture saving.
	CaptureDir string

	SampleEvery int
	DedupWindow time.Duration
	Logger      *log.Logger
	Now         func() time.Time
}

// Controller owns the recognition loop state for a single stream. It is not
// safe for concurrent use: one stream, one controller, one goroutine. The
// last-seen map in particular belongs to this controller alone.
type Controller struct {
	detector vision.Detector
	embedder vision.Embedder
	engine   *recognize.Engine
	resolver *schedule.Resolver
	store    database.Store

	courseID    string
	captureDir  string
	sampleEvery int
	dedupWindow time.Duration
	logger      *log.Logger
	now         func() time.Time

	frames   int
	lastSeen map[string]time.Time
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Detector == nil || cfg.Embedder == nil {
		return nil, errors.New("detector and embedder are required")
	}
	if cfg.Engine == nil || cfg.Resolver == nil || cfg.Store == nil {
		return nil, errors.New("engine, resolver and store are required")
	}
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = DefaultSampleEvery
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Controller{
		detector:    cfg.Detector,
		embedder:    cfg.Embedder,
		engine:      cfg.Engine,
		resolver:    cfg.Resolver,
		store:       cfg.Store,
		courseID:    cfg.CourseID,
		captureDir:  cfg.CaptureDir,
		sampleEvery: cfg.SampleEvery,
		dedupWindow: cfg.DedupWindow,
		logger:      cfg.Logger,
		now:         cfg.Now,
		lastSeen:    make(map[string]time.Time),
	}, nil
}

// ProcessFrame runs one loop iteration: detection on every frame, the full
// recognition pipeline on every Nth. Per-face failures are logged and
// labeled Unknown; they never fail the frame.
func (c *Controller) ProcessFrame(ctx context.Context, frame image.Image) (*FrameResult, error) {
	recognized := c.frames%c.sampleEvery == 0
	c.frames++

	boxes, err := c.detector.Detect(ctx, frame)
	if err != nil {
		// A down detector is a frame-local condition: show the raw frame
		// and keep the loop alive.
		c.logger.Printf("session: detection failed: %v", err)
		return &FrameResult{Annotated: frame}, nil
	}

	result := &FrameResult{Recognized: recognized}
	for _, box := range boxes {
		face := FaceOutcome{Box: box}
		if recognized {
			face = c.processFace(ctx, frame, box)
		}
		result.Faces = append(result.Faces, face)
	}

	annotations := make([]imaging.Annotation, 0, len(result.Faces))
	for _, face := range result.Faces {
		annotations = append(annotations, imaging.Annotation{
			Rect:  face.Box.Rect(),
			Label: faceLabel(face, recognized),
		})
	}
	result.Annotated = imaging.Annotate(frame, annotations)
	return result, nil
}

func faceLabel(face FaceOutcome, recognized bool) string {
	if !recognized {
		return ""
	}
	if face.IdentityID == "" {
		return face.Outcome.String()
	}
	return fmt.Sprintf("%s: %s", face.IdentityID, face.Outcome)
}

// processFace runs the outcome pipeline for one detected face.
func (c *Controller) processFace(ctx context.Context, frame image.Image, box vision.Box) FaceOutcome {
	face := FaceOutcome{Box: box}

	crop := imaging.Crop(frame, box.Rect())
	if crop == nil {
		return face
	}

	queries := c.embedVariants(ctx, crop)
	if len(queries) == 0 {
		return face
	}

	match, err := c.engine.Match(ctx, queries)
	if err != nil {
		c.logger.Printf("session: match failed: %v", err)
		return face
	}
	if !match.Matched {
		return face
	}
	face.IdentityID = match.IdentityID
	face.Confidence = match.Confidence

	now := c.now()

	// Dedup comes before any course logic and does not refresh the
	// window, otherwise a face staying in view would never re-evaluate.
	if seen, ok := c.lastSeen[match.IdentityID]; ok && now.Sub(seen) < c.dedupWindow {
		face.Outcome = RecentSuppressed
		return face
	}

	// From here on every branch counts as an evaluation attempt.
	c.lastSeen[match.IdentityID] = now

	face.Outcome = c.resolveMark(ctx, match, crop, now)
	return face
}

// resolveMark walks schedule, enrollment and daily-uniqueness gates and
// persists the mark when all of them pass.
func (c *Controller) resolveMark(
	ctx context.Context, match recognize.MatchResult, crop image.Image, now time.Time,
) Outcome {
	course, err := c.resolver.Resolve(ctx, now, c.courseID)
	if err != nil {
		c.logger.Printf("session: schedule lookup failed: %v", err)
		return NoActiveSession
	}
	if course == nil {
		return NoActiveSession
	}

	enrolled, err := c.store.IsEnrolled(ctx, match.IdentityID, course.ID)
	if err != nil {
		c.logger.Printf("session: enrollment check failed: %v", err)
		return NotEnrolled
	}
	if !enrolled {
		return NotEnrolled
	}

	day := database.DayOf(now)
	marked, err := c.store.HasMarkForDay(ctx, match.IdentityID, course.ID, day)
	if err != nil {
		c.logger.Printf("session: mark check failed: %v", err)
		return AlreadyMarkedToday
	}
	if marked {
		return AlreadyMarkedToday
	}

	markID := uuid.NewString()
	mark := database.AttendanceMark{
		ID:         markID,
		StudentID:  match.IdentityID,
		CourseID:   course.ID,
		Day:        day,
		Timestamp:  now,
		Confidence: match.Confidence,
		ImagePath:  c.saveCapture(crop, markID),
	}
	if err := c.store.CreateMark(ctx, mark); err != nil {
		if errors.Is(err, database.ErrMarkConflict) {
			// Another stream won the race; same result for the student.
			return AlreadyMarkedToday
		}
		c.logger.Printf("session: mark write failed: %v", err)
		return AlreadyMarkedToday
	}

	c.logger.Printf("session: marked %s for %s (%s, confidence %.2f)",
		match.IdentityID, course.Code, day, match.Confidence)
	return MarkedNow
}

// embedVariants embeds the raw crop and its lighting-normalized variant,
// returning whichever succeed.
func (c *Controller) embedVariants(ctx context.Context, crop image.Image) [][]float32 {
	var queries [][]float32

	if emb, err := c.embedder.Embed(ctx, crop); err == nil {
		queries = append(queries, emb)
	} else {
		c.logger.Printf("session: raw embed failed: %v", err)
	}

	if emb, err := c.embedder.Embed(ctx, imaging.NormalizeLighting(crop)); err == nil {
		queries = append(queries, emb)
	} else {
		c.logger.Printf("session: normalized embed failed: %v", err)
	}

	return queries
}

// saveCapture writes the face crop that produced a mark. Failures only cost
// the image reference, never the mark.
func (c *Controller) saveCapture(crop image.Image, markID string) string {
	if c.captureDir == "" {
		return ""
	}
	if err := os.MkdirAll(c.captureDir, 0o755); err != nil {
		c.logger.Printf("session: create capture dir: %v", err)
		return ""
	}

	path := filepath.Join(c.captureDir, markID+".jpg")
	data, err := imaging.EncodeJPEG(crop)
	if err != nil {
		c.logger.Printf("session: encode capture: %v", err)
		return ""
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.logger.Printf("session: write capture: %v", err)
		return ""
	}
	return path
}
