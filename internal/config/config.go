package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed courses.yaml
var coursesYAML []byte

type Config struct {
	Vision      VisionConfig
	Camera      CameraConfig
	Recognition RecognitionConfig
	Identity    IdentityConfig
	Database    DatabaseConfig
	Seed        SeedConfig
}

type VisionConfig struct {
	URL         string  // base URL of the detection/embedding service (defaults to http://localhost:8000)
	StrictEmbed bool    // treat "no face found in crop" as a hard failure
	DetectMin   float64 // minimum detector confidence for returned boxes (default 0.5)
}

type CameraConfig struct {
	URLs         []string // MJPEG stream URLs, position = camera index
	DefaultIndex int      // camera used when the stream endpoint gets no index (default 0)
	FrameWidth   int      // default 640
	FrameHeight  int      // default 480
}

type RecognitionConfig struct {
	MatchThreshold float64       // cosine distance cutoff, match iff distance < threshold (default 0.6)
	DedupWindow    time.Duration // suppress re-evaluation of an identity seen this recently (default 30s)
	SampleEvery    int           // run the full pipeline every Nth frame (default 10)
}

type IdentityConfig struct {
	SnapshotPath string // path of the identity snapshot file (default data/identities.json)
	CaptureDir   string // directory for captured face images referenced by marks (default data/captures)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// SeedConfig holds the embedded course seed used by the seed command.
type SeedConfig struct {
	Courses []SeedCourse `yaml:"courses"`
}

type SeedCourse struct {
	Code      string   `yaml:"code"`
	Name      string   `yaml:"name"`
	StartTime string   `yaml:"start_time"` // HH:MM
	EndTime   string   `yaml:"end_time"`   // HH:MM
	Days      []string `yaml:"days"`       // Mon, Tue, ...
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in (0, 2].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 2 {
		return f
	}
	return defaultVal
}

// envSeconds reads an environment variable as a positive number of seconds.
func envSeconds(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

// envBool treats "1", "true" and "yes" (any case) as true.
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// envList splits a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load() *Config {
	var seed SeedConfig
	if err := yaml.Unmarshal(coursesYAML, &seed); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded courses.yaml: " + err.Error())
	}

	return &Config{
		Vision: VisionConfig{
			URL:         os.Getenv("VISION_URL"),
			StrictEmbed: envBool("VISION_STRICT_EMBED"),
			DetectMin:   envFloat("VISION_DETECT_CONFIDENCE", 0.5),
		},
		Camera: CameraConfig{
			URLs:         envList("CAMERA_URLS"),
			DefaultIndex: envInt("CAMERA_INDEX", 0),
			FrameWidth:   envInt("CAMERA_FRAME_WIDTH", 640),
			FrameHeight:  envInt("CAMERA_FRAME_HEIGHT", 480),
		},
		Recognition: RecognitionConfig{
			MatchThreshold: envFloat("MATCH_THRESHOLD", 0.6),
			DedupWindow:    envSeconds("DEDUP_WINDOW_SECONDS", 30*time.Second),
			SampleEvery:    envInt("SAMPLE_EVERY_N_FRAMES", 10),
		},
		Identity: IdentityConfig{
			SnapshotPath: envDefault("IDENTITY_DB_PATH", "data/identities.json"),
			CaptureDir:   envDefault("CAPTURE_DIR", "data/captures"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Seed: seed,
	}
}

// envDefault returns the env var value or a default when unset.
func envDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// CameraURL returns the MJPEG stream URL for a camera index,
// or empty string if the index is not configured.
func (c *CameraConfig) CameraURL(index int) string {
	if index < 0 || index >= len(c.URLs) {
		return ""
	}
	return c.URLs[index]
}
