package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <student-id> <image-path>",
	Short: "Enroll a student's face from a photo",
	Long: `Enroll a student's face from a photo on disk.

The photo is embedded twice (raw and lighting-normalized) and both
embeddings are appended to the student's sample set. Run again with
another photo to add more samples.

Examples:
  face-attendance enroll S001 photos/s001.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	studentID, imagePath := args[0], args[1]
	cfg := config.Load()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", imagePath, err)
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", imagePath, err)
	}

	enroller := identity.NewEnroller(st.identities, newVisionClient(cfg))
	ident, err := enroller.Enroll(cmd.Context(), studentID, img, imagePath)
	if err != nil {
		return fmt.Errorf("enrolling %s: %w", studentID, err)
	}

	fmt.Printf("Enrolled %s, %d face samples total\n", studentID, len(ident.Samples))
	return nil
}
