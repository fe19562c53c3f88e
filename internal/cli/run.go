package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/service"
	"github.com/spf13/cobra"
)

var (
	runResume              bool
	runDiff                bool
	runEmployeeConcurrency int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline",
	Long: `Run every stage for the given employees: chunking and signal extraction,
per-employee clustering, cohort deduplication and the taxonomy.

Examples:
  promosignal run --employees employees.json
  promosignal run -e employees.yaml --output out --provider openai
  promosignal run -e employees.json --resume --diff --progress`,
	RunE: runRun,
}

func init() {
	addEmployeesFlag(runCmd)
	runCmd.Flags().BoolVar(&runResume, "resume", false, "skip employees whose cluster set already exists")
	runCmd.Flags().BoolVar(&runDiff, "diff", false, "also compare VP and non-VP themes")
	runCmd.Flags().BoolVar(&showProgress, "progress", false, "show a progress bar (terminal only)")
	runCmd.Flags().IntVar(&runEmployeeConcurrency, "employee-concurrency", 0, "employees processed at once (default from PROMOSIGNAL_EMPLOYEE_CONCURRENCY)")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptible(cmd)
	defer stop()

	employees, err := loadEmployees(employeesPath)
	if err != nil {
		return err
	}

	opts := service.PipelineOptions{
		EmployeeConcurrency: runEmployeeConcurrency,
		Resume:              runResume,
		Difference:          runDiff,
	}

	var report *service.RunReport
	if progressEnabled(cmd) {
		report, err = runWithProgress(ctx, opts, employees)
	} else {
		var pipeline *service.Pipeline
		pipeline, err = getPipeline(ctx, opts)
		if err != nil {
			return err
		}
		report, err = pipeline.Run(ctx, employees)
	}
	if report != nil {
		printReport(report)
	}
	return err
}

func printReport(r *service.RunReport) {
	fmt.Printf("Run %s: %s\n", r.Run.ID, r.Run.Status)
	fmt.Printf("  Employees:  %d/%d", r.Run.Progress, r.Run.Total)
	if r.Run.Skipped > 0 {
		fmt.Printf(" (%d resumed)", r.Run.Skipped)
	}
	fmt.Println()
	fmt.Printf("  VP patterns:     %d\n", len(r.Patterns[models.CohortVP]))
	fmt.Printf("  Non-VP patterns: %d\n", len(r.Patterns[models.CohortNonVP]))
	fmt.Printf("  Categories:      %d\n", len(r.Taxonomy))
	if r.Difference != nil {
		fmt.Printf("  Compared:        %d\n", len(r.Difference))
	}
	if len(r.Run.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(r.Run.Warnings))
		for _, w := range r.Run.Warnings {
			fmt.Printf("  • %s\n", w)
		}
	}
}

func printTaxonomy(t models.Taxonomy) {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Printf("%s\n  %s\n", name, t[name])
	}
}

// interruptible returns a context cancelled on SIGINT or SIGTERM.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
