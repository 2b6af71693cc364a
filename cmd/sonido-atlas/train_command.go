package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-atlas/catalog"
)

func newTrainCommand(ctx *commandContext) *cobra.Command {
	var (
		input            string
		outDir           string
		k                int
		seed             int64
		silhouetteSample int
		noCache          bool
		noProgress       bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the clustering model for a track catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if strings.TrimSpace(input) != "" {
				cfg.Paths.Input = input
			}
			if strings.TrimSpace(outDir) != "" {
				cfg.Paths.OutDir = outDir
			}
			if flags.Changed("k") {
				cfg.Training.K = k
			}
			if flags.Changed("seed") {
				cfg.Training.Seed = seed
			}
			if flags.Changed("silhouette-sample") {
				cfg.Training.SilhouetteSample = silhouetteSample
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Paths.Input == "" {
				return errors.New("no catalog given: pass --input or set paths.input")
			}

			cat, err := catalog.Load(cfg.Paths.Input)
			if err != nil {
				return err
			}

			progress := newAnalysisProgress(cmd.ErrOrStderr(), cat.Tracks, !noProgress && isTerminal(cmd.ErrOrStderr()))
			p, closeCache, err := ctx.newPipeline(cmd.Context(), cfg, !noCache, progress.option())
			if err != nil {
				progress.wait()
				return err
			}
			defer closeCache()

			summary, err := p.Train(cmd.Context(), cat)
			progress.wait()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderClusterSizes(summary.ClusterSizes))
			fmt.Fprintf(out, "Saved to: %s\n", cfg.Paths.OutDir)
			fmt.Fprintf(out, "Tracks: %d | k=%d | silhouette(sample)=%s\n", summary.Tracks, summary.K, formatSilhouette(summary.Silhouette))
			if b := summary.Batch; b.Failed > 0 {
				fmt.Fprintf(out, "Audio: %d analyzed, %d cached, %d failed to decode\n", b.Analyzed, b.Cached, b.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Catalog JSON (overrides paths.input)")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Output directory (overrides paths.out_dir)")
	cmd.Flags().IntVar(&k, "k", 0, "Number of clusters (overrides training.k)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (overrides training.seed)")
	cmd.Flags().IntVar(&silhouetteSample, "silhouette-sample", 0, "Silhouette sample size (overrides training.silhouette_sample)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the descriptor cache")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func renderClusterSizes(sizes []int) string {
	rows := make([][]string, len(sizes))
	for i, n := range sizes {
		rows[i] = []string{strconv.Itoa(i), strconv.Itoa(n)}
	}
	return renderTable([]string{"Cluster", "Tracks"}, rows, []columnAlignment{alignRight, alignRight})
}

func formatSilhouette(s *float64) string {
	if s == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*s, 'f', 4, 64)
}

