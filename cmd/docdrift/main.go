package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"docdrift/internal/config"
	"docdrift/internal/freshness"
	"docdrift/internal/manifest"
	"docdrift/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "docdrift",
		Short: "Living documentation drift detector",
	}
	configPath string
	docPath    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "docdrift.yaml", "Path to the configuration file")

	recordCmd.Flags().StringVar(&docPath, "doc", "", "Path to the generated documentation file")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(recordCmd)
}

// initSync builds the pipeline from config, optionally overriding the root.
func initSync(rootOverride string) (*pipeline.Sync, *config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rootOverride != "" {
		cfg.Project.Root = rootOverride
	}
	sync, err := pipeline.NewSync(cfg)
	if err != nil {
		return nil, nil, err
	}
	return sync, cfg, nil
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Build the project tree and save it as the new baseline",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := ""
		if len(args) > 0 {
			root = args[0]
		}

		sync, _, err := initSync(root)
		if err != nil {
			log.Fatalf("%v", err)
		}

		fmt.Printf("📂 Scanning %s\n", sync.Root)
		result, err := sync.Run(context.Background(), true)
		if err != nil {
			log.Fatalf("Scan failed: %v", err)
		}

		if len(result.Warnings) > 0 {
			fmt.Printf("⚠️  %d entries skipped (unreadable)\n", len(result.Warnings))
		}
		fmt.Printf("✅ Baseline saved. Root hash: %s (%d files)\n",
			result.Current.RootHash(), result.Report.TotalFiles)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Report documentation freshness without touching the baseline",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := ""
		if len(args) > 0 {
			root = args[0]
		}

		sync, _, err := initSync(root)
		if err != nil {
			log.Fatalf("%v", err)
		}

		result, err := sync.Run(context.Background(), false)
		if err != nil {
			log.Fatalf("Status check failed: %v", err)
		}
		if result.FirstRun {
			fmt.Println("🧭 No baseline yet, run 'docdrift scan' to establish one.")
		}

		printReport(result.Report)
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff [path]",
	Short: "Show raw changes against the saved baseline",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := ""
		if len(args) > 0 {
			root = args[0]
		}

		sync, _, err := initSync(root)
		if err != nil {
			log.Fatalf("%v", err)
		}

		result, err := sync.Run(context.Background(), false)
		if err != nil {
			log.Fatalf("Diff failed: %v", err)
		}

		if result.Diff.Empty() {
			fmt.Println("✅ No changes since baseline.")
			return
		}
		for _, p := range result.Diff.Added {
			fmt.Printf("A %s\n", p)
		}
		for _, p := range result.Diff.Modified {
			fmt.Printf("M %s\n", p)
		}
		for _, p := range result.Diff.Removed {
			fmt.Printf("D %s\n", p)
		}
	},
}

var recordCmd = &cobra.Command{
	Use:   "record <component-id> <source-path>",
	Short: "Register or refresh a component record after docs are generated",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		sync, cfg, err := initSync("")
		if err != nil {
			log.Fatalf("%v", err)
		}

		// Hash the source as it stands right now; that is the state the
		// freshly generated docs describe.
		result, err := sync.Run(context.Background(), false)
		if err != nil {
			log.Fatalf("Tree build failed: %v", err)
		}

		cleaned, err := manifest.CleanSourcePath(args[1])
		if err != nil {
			log.Fatalf("%v", err)
		}
		node := result.Current.Lookup(cleaned)
		if node == nil {
			log.Fatalf("No such path in the project tree: %s", cleaned)
		}

		rec, err := manifest.NewComponentRecord(args[0], cleaned, node.Hash, docPath)
		if err != nil {
			log.Fatalf("%v", err)
		}

		db, err := manifest.NewSQLiteStore(cfg.Manifest.Path)
		if err != nil {
			log.Fatalf("Failed to open manifest: %v", err)
		}
		defer db.Close()

		if err := db.SaveRecord(context.Background(), rec); err != nil {
			log.Fatalf("Failed to save record: %v", err)
		}
		fmt.Printf("✅ Recorded %s -> %s @ %s\n", rec.ComponentID, rec.SourcePath, rec.SourceHash)
	},
}

func printReport(report *freshness.Report) {
	order := []struct {
		state freshness.State
		icon  string
		label string
	}{
		{freshness.Stale, "⚠️ ", "stale"},
		{freshness.Orphaned, "🗑 ", "orphaned"},
		{freshness.Uncovered, "❓ ", "uncovered"},
		{freshness.Fresh, "✅ ", "fresh"},
	}

	for _, o := range order {
		paths := report.Paths(o.state)
		if len(paths) == 0 {
			continue
		}
		fmt.Printf("%s%s (%d):\n", o.icon, o.label, len(paths))
		for _, p := range paths {
			e := report.Entries[p]
			if e.ComponentID != "" {
				fmt.Printf("  %s (%s)\n", p, e.ComponentID)
			} else {
				fmt.Printf("  %s\n", p)
			}
		}
	}
	fmt.Printf("📊 %d files, %d documented components\n", report.TotalFiles, report.TotalComponents)
}
