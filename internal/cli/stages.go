package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/service"
	"github.com/spf13/cobra"
)

var (
	dedupeCohort string
	taxonomyDiff bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Split awards into token-bounded chunks",
	Long: `Split each employee's awards into chunks that fit the token budget and
write them to employee_<id>_award_chunks.jsonl. No model calls are made.

Examples:
  promosignal chunk --employees employees.json --max-tokens 8000`,
	RunE: runChunk,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract signals from awards",
	Long: `Chunk each employee's awards and extract promotion signals from every
chunk. Results are written to employee_<id>_keywords.json.

Examples:
  promosignal extract --employees employees.json --concurrency 3`,
	RunE: runExtract,
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster extracted signals per employee",
	Long: `Cluster each employee's previously extracted phrases into themes. Results
are written to <True|False>/employee_<id>_clustering_result.json.

Examples:
  promosignal cluster --employees employees.json`,
	RunE: runCluster,
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Consolidate cluster names per cohort",
	Long: `Collect the cluster names of every employee in a cohort and merge
equivalent names into canonical patterns (<True|False>/pattern_results.json).

Examples:
  promosignal dedupe
  promosignal dedupe --cohort vp`,
	RunE: runDedupe,
}

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Build the taxonomy from both cohorts",
	Long: `Merge the VP and non-VP patterns into taxonomy.json. With --diff the
cohorts are also compared and the result written to taxonomy_diff.json.

Examples:
  promosignal taxonomy
  promosignal taxonomy --diff`,
	RunE: runTaxonomy,
}

func init() {
	addEmployeesFlag(chunkCmd)
	addEmployeesFlag(extractCmd)
	addEmployeesFlag(clusterCmd)
	dedupeCmd.Flags().StringVar(&dedupeCohort, "cohort", "all", "cohort to deduplicate (vp, non-vp, all)")
	taxonomyCmd.Flags().BoolVar(&taxonomyDiff, "diff", false, "also compare VP and non-VP themes")
}

func runChunk(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptible(cmd)
	defer stop()

	employees, err := loadEmployees(employeesPath)
	if err != nil {
		return err
	}
	tc, err := getCounter()
	if err != nil {
		return err
	}

	// Chunking needs no model
	ex := service.NewExtractor(nil, artifacts, tc, service.ExtractorOptions{MaxTokens: cfg.MaxChunkTokens}, collector)
	for _, emp := range employees {
		chunks, err := ex.Chunk(ctx, emp)
		if err != nil {
			return err
		}
		oversize := 0
		for _, c := range chunks {
			if c.Oversize {
				oversize++
			}
		}
		fmt.Printf("employee %d: %d awards, %d chunks", emp.ID, len(emp.Awards), len(chunks))
		if oversize > 0 {
			fmt.Printf(" (%d oversize)", oversize)
		}
		fmt.Println()
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptible(cmd)
	defer stop()

	employees, err := loadEmployees(employeesPath)
	if err != nil {
		return err
	}
	m, err := getModel(ctx)
	if err != nil {
		return err
	}
	tc, err := getCounter()
	if err != nil {
		return err
	}

	ex := service.NewExtractor(m, artifacts, tc, service.ExtractorOptions{
		MaxTokens:   cfg.MaxChunkTokens,
		Concurrency: cfg.ExtractConcurrency,
	}, collector)
	for _, emp := range employees {
		res, err := ex.Extract(ctx, emp)
		if err != nil {
			return err
		}
		fmt.Printf("employee %d: %d chunks, %d failed, %d phrases\n",
			emp.ID, res.Chunks, res.FailedChunks, res.Signals.Count())
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "  • %s\n", e)
		}
	}
	return nil
}

func runCluster(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptible(cmd)
	defer stop()

	employees, err := loadEmployees(employeesPath)
	if err != nil {
		return err
	}
	m, err := getModel(ctx)
	if err != nil {
		return err
	}
	clusterer := service.NewClusterer(m, artifacts, collector)

	for _, emp := range employees {
		set, err := clusterer.ClusterStored(ctx, emp)
		if err != nil {
			return err
		}
		fmt.Printf("employee %d (%s): %d clusters\n", emp.ID, emp.Cohort().Slug(), len(set))
	}
	return nil
}

func runDedupe(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptible(cmd)
	defer stop()

	cohorts := []models.Cohort{models.CohortVP, models.CohortNonVP}
	if dedupeCohort != "all" {
		c, err := models.ParseCohort(dedupeCohort)
		if err != nil {
			return err
		}
		cohorts = []models.Cohort{c}
	}

	m, err := getModel(ctx)
	if err != nil {
		return err
	}
	dedup := service.NewDeduplicator(m, artifacts, collector)
	for _, c := range cohorts {
		set, err := dedup.DedupeCohort(ctx, c)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d canonical patterns\n", c.Slug(), len(set))
	}
	return nil
}

func runTaxonomy(cmd *cobra.Command, args []string) error {
	ctx, stop := interruptible(cmd)
	defer stop()

	// The merge itself needs no model; only the comparison does
	var gen service.Generator
	if taxonomyDiff {
		m, err := getModel(ctx)
		if err != nil {
			return err
		}
		gen = m
	}
	t, diff, err := service.NewTaxonomyBuilder(gen, artifacts).FromStored(ctx, taxonomyDiff)
	if err != nil {
		return err
	}

	printTaxonomy(t)
	if taxonomyDiff {
		fmt.Printf("\nCompared %d categories across cohorts\n", len(diff))
	}
	return nil
}
