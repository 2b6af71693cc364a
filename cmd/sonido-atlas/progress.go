package main

import (
	"io"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/RyanBlaney/sonido-atlas/catalog"
	"github.com/RyanBlaney/sonido-atlas/pipeline"
)

// analysisProgress draws a bar over the tracks that carry audio. A nil
// progress is valid and draws nothing.
type analysisProgress struct {
	container *mpb.Progress
	bar       *mpb.Bar
}

func newAnalysisProgress(out io.Writer, tracks []catalog.Track, enabled bool) *analysisProgress {
	total := 0
	for i := range tracks {
		if tracks[i].AudioPath != "" {
			total++
		}
	}
	if !enabled || total == 0 {
		return nil
	}

	container := mpb.New(mpb.WithWidth(64), mpb.WithOutput(out))
	bar := container.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Analyzing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)
	return &analysisProgress{container: container, bar: bar}
}

func (p *analysisProgress) option() pipeline.Option {
	if p == nil {
		return func(*pipeline.Pipeline) {}
	}
	last := time.Now()
	return pipeline.WithProgress(func(done, total int) {
		now := time.Now()
		p.bar.EwmaSetCurrent(int64(done), now.Sub(last))
		last = now
	})
}

// wait flushes the bar, aborting it when the run stopped early.
func (p *analysisProgress) wait() {
	if p == nil {
		return
	}
	if !p.bar.Completed() {
		p.bar.Abort(false)
	}
	p.container.Wait()
}
