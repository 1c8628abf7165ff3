package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
)

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List the configured camera streams",
	RunE:  runCameras,
}

func init() {
	rootCmd.AddCommand(camerasCmd)
}

func runCameras(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if len(cfg.Camera.URLs) == 0 {
		fmt.Println("No cameras configured, set CAMERA_URLS")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tURL\tDEFAULT")
	for i, url := range cfg.Camera.URLs {
		def := ""
		if i == cfg.Camera.DefaultIndex {
			def = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, url, def)
	}
	return w.Flush()
}
