package cmd

import (
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/recognize"
	"github.com/kozaktomas/face-attendance/internal/schedule"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Run live recognition on a camera without the web server",
	Long: `Run the live recognition loop against a configured camera and print
what it does: recognized students, recorded marks and skipped faces.
Useful for testing a camera position before wiring it into the web UI.

Examples:
  face-attendance stream
  face-attendance stream --camera 1 --course c1`,
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)

	streamCmd.Flags().Int("camera", -1, "Camera index (defaults to CAMERA_INDEX)")
	streamCmd.Flags().String("course", "", "Pin marks to this course id instead of resolving by schedule")
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	cameraIndex := mustGetInt(cmd, "camera")
	if cameraIndex < 0 {
		cameraIndex = cfg.Camera.DefaultIndex
	}
	url := cfg.Camera.CameraURL(cameraIndex)
	if url == "" {
		return fmt.Errorf("camera %d is not configured, set CAMERA_URLS", cameraIndex)
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	client := newVisionClient(cfg)
	controller, err := session.NewController(session.Config{
		Detector:    client,
		Embedder:    client,
		Engine:      recognize.NewEngine(identity.CandidateSource{Store: st.identities}, cfg.Recognition.MatchThreshold),
		Resolver:    schedule.NewResolver(st.records),
		Store:       st.records,
		CourseID:    mustGetString(cmd, "course"),
		CaptureDir:  cfg.Identity.CaptureDir,
		SampleEvery: cfg.Recognition.SampleEvery,
		DedupWindow: cfg.Recognition.DedupWindow,
		Logger:      log.New(os.Stdout, "", log.Ltime),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Opening camera %d (%s)\n", cameraIndex, url)
	src, err := camera.OpenMJPEG(ctx, url)
	if err != nil {
		return fmt.Errorf("opening camera %d: %w", cameraIndex, err)
	}
	defer src.Close()

	fmt.Println("Streaming, press Ctrl+C to stop")
	err = controller.Run(ctx, src, func(image.Image) error { return nil })
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream ended: %w", err)
	}
	return nil
}
