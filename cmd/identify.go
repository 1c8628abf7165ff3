package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/imaging"
	"github.com/kozaktomas/face-attendance/internal/recognize"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image-path>",
	Short: "Find the enrolled students closest to a face photo",
	Long: `Find the enrolled students whose face samples are closest to the face
in a photo. Unlike live recognition this does not apply the match
threshold; it always reports the nearest candidates with distances,
which makes it useful for tuning the threshold.

Examples:
  face-attendance identify photo.jpg
  face-attendance identify photo.jpg --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().Int("limit", 5, "Number of candidates to report")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	imagePath := args[0]
	limit := mustGetInt(cmd, "limit")
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

	client := newVisionClient(cfg)
	ctx := cmd.Context()

	boxes, err := client.Detect(ctx, img)
	if err != nil {
		return fmt.Errorf("detecting faces: %w", err)
	}
	if len(boxes) == 0 {
		fmt.Println("No face found in photo")
		return nil
	}

	// Largest box wins when several faces are present.
	best := boxes[0]
	for _, box := range boxes[1:] {
		if (box.X2-box.X1)*(box.Y2-box.Y1) > (best.X2-best.X1)*(best.Y2-best.Y1) {
			best = box
		}
	}
	crop := imaging.Crop(img, best.Rect())
	if crop == nil {
		return fmt.Errorf("detected face region is degenerate")
	}
	embedding, err := client.Embed(ctx, crop)
	if err != nil {
		return fmt.Errorf("embedding face: %w", err)
	}

	candidates, err := identity.CandidateSource{Store: st.identities}.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("loading identities: %w", err)
	}
	index := recognize.NewIndex()
	index.Build(candidates)

	neighbors := index.Search(embedding, limit)
	if len(neighbors) == 0 {
		fmt.Println("No enrolled students to compare against")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tDISTANCE\tCONFIDENCE")
	fmt.Fprintln(w, "-------\t--------\t----------")
	for _, n := range neighbors {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\n", n.IdentityID, n.Distance, 1-n.Distance)
	}
	return w.Flush()
}
