package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-atlas/catalog"
	"github.com/RyanBlaney/sonido-atlas/model"
	"github.com/RyanBlaney/sonido-atlas/pipeline"
)

func newPredictCommand(ctx *commandContext) *cobra.Command {
	var (
		input      string
		modelPath  string
		noCache    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Assign catalog tracks to clusters of a trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(input) != "" {
				cfg.Paths.Input = input
			}
			if cfg.Paths.Input == "" {
				return errors.New("no catalog given: pass --input or set paths.input")
			}
			if strings.TrimSpace(modelPath) == "" {
				modelPath = filepath.Join(cfg.Paths.OutDir, model.ModelFileName)
			}

			doc, err := model.ReadDocument(modelPath)
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Paths.Input)
			if err != nil {
				return err
			}

			p, closeCache, err := ctx.newPipeline(cmd.Context(), cfg, !noCache)
			if err != nil {
				return err
			}
			defer closeCache()

			batch, err := p.AnalyzeTracks(cmd.Context(), cat.Tracks)
			if err != nil {
				return err
			}

			maps := pipeline.FeatureMaps(cat.Tracks, batch.Records)
			labels := make([]int, len(maps))
			for i, m := range maps {
				if labels[i], err = doc.Predict(m); err != nil {
					return fmt.Errorf("track %q: %w", cat.Tracks[i].ID, err)
				}
			}
			assignments, err := model.NewAssignments(cat.Tracks, labels)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(assignments)
			}

			rows := make([][]string, len(assignments))
			for i, a := range assignments {
				rows[i] = []string{a.SpotifyID, a.Name, strings.Join(a.Artists, ", "), strconv.Itoa(a.Cluster)}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Artists", "Cluster"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Catalog JSON (overrides paths.input)")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Model document (default <out_dir>/kmeans_model.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the descriptor cache")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print assignments as JSON")
	return cmd
}
