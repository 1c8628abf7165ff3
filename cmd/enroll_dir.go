package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

var enrollDirCmd = &cobra.Command{
	Use:   "enroll-dir <directory>",
	Short: "Bulk-enroll faces from a directory of photos",
	Long: `Bulk-enroll faces from a directory of photos.

The file name without extension is the student id, so photos/S001.jpg
enrolls student S001. Files that fail to decode or embed are reported
and skipped; the rest of the batch continues.

Examples:
  face-attendance enroll-dir photos/`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollDir,
}

func init() {
	rootCmd.AddCommand(enrollDirCmd)
}

// isImageFile reports whether the file extension is a supported format.
func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func runEnrollDir(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cfg := config.Load()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && isImageFile(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		fmt.Printf("No images found in %s\n", dir)
		return nil
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()
	enroller := identity.NewEnroller(st.identities, newVisionClient(cfg))

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var enrolled, failed int
	var failures []string
	for _, name := range files {
		path := filepath.Join(dir, name)
		studentID := strings.TrimSuffix(name, filepath.Ext(name))

		if err := enrollFile(cmd, enroller, studentID, path); err != nil {
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		} else {
			enrolled++
		}
		bar.Add(1)
	}
	fmt.Println()

	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "  %s\n", f)
	}
	fmt.Printf("Enrolled: %d, Failed: %d\n", enrolled, failed)
	return nil
}

func enrollFile(cmd *cobra.Command, enroller *identity.Enroller, studentID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return err
	}
	_, err = enroller.Enroll(cmd.Context(), studentID, img, path)
	return err
}
