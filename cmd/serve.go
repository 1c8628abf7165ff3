package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/recognize"
	"github.com/kozaktomas/face-attendance/internal/schedule"
	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the attendance web server.
The server exposes the roster and course API, face enrollment, attendance
queries and the live annotated MJPEG feed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// buildIndex loads all enrolled identities into the in-memory HNSW index.
func buildIndex(ctx context.Context, index *recognize.Index, identities identity.Store) error {
	candidates, err := identity.CandidateSource{Store: identities}.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("loading identities for index: %w", err)
	}
	index.Build(candidates)
	fmt.Printf("HNSW index built with %d face samples\n", index.Count())
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	client := newVisionClient(cfg)
	engine := recognize.NewEngine(identity.CandidateSource{Store: st.identities}, cfg.Recognition.MatchThreshold)
	index := recognize.NewIndex()
	if err := buildIndex(cmd.Context(), index, st.identities); err != nil {
		return err
	}

	registry := camera.NewRegistry(func(ctx context.Context, idx int) (camera.Source, error) {
		url := cfg.Camera.CameraURL(idx)
		if url == "" {
			return nil, fmt.Errorf("camera %d is not configured: %w", idx, camera.ErrDeviceUnavailable)
		}
		return camera.OpenMJPEG(ctx, url)
	})

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(web.Deps{
		Config:     cfg,
		Store:      st.records,
		Identities: st.identities,
		Enroller:   identity.NewEnroller(st.identities, client),
		Engine:     engine,
		Index:      index,
		Resolver:   schedule.NewResolver(st.records),
		Registry:   registry,
		Detector:   client,
		Embedder:   client,
	}, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
