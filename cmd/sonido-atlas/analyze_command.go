package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/RyanBlaney/sonido-atlas/algorithms/chroma"
	"github.com/RyanBlaney/sonido-atlas/algorithms/tonal"
	"github.com/RyanBlaney/sonido-atlas/descriptors"
	"github.com/RyanBlaney/sonido-atlas/pipeline"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var noCache bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze <audio-file>",
		Short: "Compute descriptors for one audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(outDir) != "" {
				cfg.Paths.OutDir = outDir
			}

			p, closeCache, err := ctx.newPipeline(cmd.Context(), cfg, !noCache)
			if err != nil {
				return err
			}
			defer closeCache()

			if err := p.CheckDecoder(cmd.Context()); err != nil {
				return err
			}
			rec, cached, err := p.AnalyzeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			path, err := pipeline.ExportDescriptors(cfg.Paths.OutDir, rec)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}

			fmt.Fprintln(out, renderRecord(rec))
			source := "computed"
			if cached {
				source = "cached"
			}
			fmt.Fprintf(out, "Descriptors %s, saved to: %s\n", source, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Directory for descriptors.json (overrides paths.out_dir)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the descriptor cache")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the record as JSON")
	return cmd
}

// renderRecord shows descriptors under display labels; descriptors.json
// keeps the raw names.
func renderRecord(rec *descriptors.Record) string {
	caser := cases.Title(language.English)
	rows := make([][]string, 0, rec.Len())
	for _, name := range rec.Names() {
		label := caser.String(strings.ReplaceAll(name, "_", " "))
		rows = append(rows, []string{label, formatDescriptor(rec, name)})
	}
	return renderTable([]string{"Descriptor", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func formatDescriptor(rec *descriptors.Record, name string) string {
	v, ok := rec.Float(name)
	if !ok {
		return "n/a"
	}
	switch name {
	case descriptors.Key:
		labels := chroma.Labels()
		if k := int(v); k >= 0 && k < len(labels) {
			return labels[k]
		}
	case descriptors.Mode:
		return tonal.KeyMode(int(v)).String()
	case descriptors.DurationMS, descriptors.TimeSignatureGuess:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
