package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/schedule"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the embedded course catalog",
	Long: `Create the courses from the embedded catalog. Courses whose code
already exists are skipped, so seeding is safe to repeat. Schedule
overlaps between active courses are reported as warnings.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()
	ctx := cmd.Context()

	existing, err := st.records.ListCourses(ctx)
	if err != nil {
		return fmt.Errorf("listing courses: %w", err)
	}
	haveCode := make(map[string]bool, len(existing))
	for _, c := range existing {
		haveCode[c.Code] = true
	}

	var created, skipped int
	for _, sc := range cfg.Seed.Courses {
		if haveCode[sc.Code] {
			skipped++
			continue
		}
		course, err := seedCourse(sc)
		if err != nil {
			return fmt.Errorf("course %s: %w", sc.Code, err)
		}
		if err := st.records.CreateCourse(ctx, course); err != nil {
			return fmt.Errorf("creating course %s: %w", sc.Code, err)
		}
		fmt.Printf("Created %s (%s, %s-%s %s)\n",
			sc.Code, sc.Name, sc.StartTime, sc.EndTime, strings.Join(sc.Days, ","))
		created++
	}
	fmt.Printf("Created: %d, Skipped: %d\n", created, skipped)

	overlaps, err := schedule.NewResolver(st.records).DetectOverlaps(ctx)
	if err != nil {
		return fmt.Errorf("checking overlaps: %w", err)
	}
	for _, o := range overlaps {
		fmt.Printf("Warning: %s and %s overlap on %s\n", o.A.Code, o.B.Code, o.Day)
	}
	return nil
}

// seedCourse converts an embedded catalog entry to a Course.
func seedCourse(sc config.SeedCourse) (database.Course, error) {
	start, err := database.ParseClock(sc.StartTime)
	if err != nil {
		return database.Course{}, err
	}
	end, err := database.ParseClock(sc.EndTime)
	if err != nil {
		return database.Course{}, err
	}
	days, err := database.ParseDays(strings.Join(sc.Days, ","))
	if err != nil {
		return database.Course{}, err
	}
	return database.Course{
		ID:          uuid.NewString(),
		Code:        sc.Code,
		Name:        sc.Name,
		StartMinute: start,
		EndMinute:   end,
		Days:        days,
		Active:      true,
	}, nil
}
