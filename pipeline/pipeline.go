// Package pipeline runs catalog analysis and training end to end: decode and
// describe audio on a bounded worker pool, assemble feature maps, train the
// model and export artifacts into a locked output directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RyanBlaney/sonido-atlas/cache"
	"github.com/RyanBlaney/sonido-atlas/catalog"
	"github.com/RyanBlaney/sonido-atlas/config"
	"github.com/RyanBlaney/sonido-atlas/descriptors"
	"github.com/RyanBlaney/sonido-atlas/features"
	"github.com/RyanBlaney/sonido-atlas/logging"
	"github.com/RyanBlaney/sonido-atlas/model"
	"github.com/RyanBlaney/sonido-atlas/transcode"
)

// ErrDecoderUnavailable is returned when the decoder's external tools cannot
// be run.
var ErrDecoderUnavailable = errors.New("audio decoder unavailable")

// toolChecker is implemented by decoders that shell out to external tools.
type toolChecker interface {
	CheckFFmpeg(ctx context.Context) error
}

// ProgressFunc is called after each audio track finishes, successfully or
// not. Calls are serialized.
type ProgressFunc func(done, total int)

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithCache reuses descriptor records from store.
func WithCache(store *cache.Store) Option {
	return func(p *Pipeline) {
		p.cache = store
	}
}

// WithDecoder replaces the ffmpeg decoder.
func WithDecoder(decoder transcode.Decoder) Option {
	return func(p *Pipeline) {
		p.decoder = decoder
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// Pipeline ties the analyzer, the descriptor cache and the trainer to one
// configuration.
type Pipeline struct {
	cfg         *config.Config
	decoder     transcode.Decoder
	analyzer    *descriptors.Analyzer
	cache       *cache.Store
	optionsHash string
	progress    ProgressFunc
	logger      logging.Logger
}

// New builds a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	p := &Pipeline{
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "pipeline",
		}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.decoder == nil {
		p.decoder = transcode.NewFFmpegDecoder(cfg.DecoderConfig())
	}

	loader := transcode.NewLoader(p.decoder, cfg.LoadOptions())
	analyzer, err := descriptors.NewAnalyzer(loader, cfg.DescriptorOptions())
	if err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}
	p.analyzer = analyzer

	hash, err := cache.OptionsHash(struct {
		Descriptors descriptors.Options  `json:"descriptors"`
		Load        transcode.LoadOptions `json:"load"`
	}{cfg.DescriptorOptions(), cfg.LoadOptions()})
	if err != nil {
		return nil, err
	}
	p.optionsHash = hash
	return p, nil
}

// OptionsHash identifies the analysis settings in the descriptor cache.
func (p *Pipeline) OptionsHash() string {
	return p.optionsHash
}

// CheckDecoder verifies that the decoder's external tools run. Decoders
// without external tools always pass.
func (p *Pipeline) CheckDecoder(ctx context.Context) error {
	checker, ok := p.decoder.(toolChecker)
	if !ok {
		return nil
	}
	if err := checker.CheckFFmpeg(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDecoderUnavailable, err)
	}
	return nil
}

// PrepareCache drops cached records computed with other analysis settings
// and reports how many remain. It is a no-op without a cache.
func (p *Pipeline) PrepareCache(ctx context.Context) (records int, pruned int64, err error) {
	if p.cache == nil {
		return 0, 0, nil
	}
	pruned, err = p.cache.Prune(ctx, p.optionsHash)
	if err != nil {
		return 0, 0, err
	}
	records, err = p.cache.Count(ctx)
	if err != nil {
		return 0, pruned, err
	}

	p.logger.Debug("Descriptor cache ready", logging.Fields{
		"path":    p.cache.Path(),
		"records": records,
		"pruned":  pruned,
	})
	return records, pruned, nil
}

// Batch holds per-track descriptor records in catalog order. Records[i] is
// nil when track i has no audio or failed to decode.
type Batch struct {
	Records  []*descriptors.Record
	Analyzed int
	Cached   int
	Failed   int
	Skipped  int
}

// AnalyzeFile describes one audio file, consulting the cache when present.
func (p *Pipeline) AnalyzeFile(ctx context.Context, path string) (rec *descriptors.Record, cached bool, err error) {
	logger := p.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "AnalyzeFile",
		"path":     path,
	})

	var key cache.Key
	useCache := p.cache != nil
	if useCache {
		key, err = cache.KeyForFile(path, p.optionsHash)
		if err != nil {
			useCache = false
		}
	}

	if useCache {
		hit, ok, getErr := p.cache.Get(ctx, key)
		if getErr != nil {
			logger.Warn("Descriptor cache lookup failed", logging.Fields{"error": getErr.Error()})
		} else if ok {
			logger.Debug("Descriptor cache hit")
			return hit, true, nil
		}
	}

	rec, err = p.analyzer.AnalyzeFile(ctx, path)
	if err != nil {
		return nil, false, err
	}

	if useCache {
		if putErr := p.cache.Put(ctx, key, rec); putErr != nil {
			logger.Warn("Descriptor cache store failed", logging.Fields{"error": putErr.Error()})
		}
	}
	return rec, false, nil
}

// AnalyzeTracks analyzes every track that carries an audio path on a pool of
// analysis.workers goroutines. Decode failures are skipped with a warning
// unless analysis.fail_on_decode_error is set; any other error, or
// cancellation, stops the batch.
func (p *Pipeline) AnalyzeTracks(ctx context.Context, tracks []catalog.Track) (*Batch, error) {
	logger := p.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "AnalyzeTracks",
	})

	batch := &Batch{Records: make([]*descriptors.Record, len(tracks))}

	var pending []int
	for i := range tracks {
		if tracks[i].AudioPath == "" {
			batch.Skipped++
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return batch, nil
	}
	if err := p.CheckDecoder(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	numWorkers := max(1, min(p.cfg.Analysis.Workers, len(pending)))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     int
		firstErr error
		errOnce  sync.Once
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				track := &tracks[idx]
				trackCtx := logging.ContextWithFields(ctx, logging.Fields{"track": track.ID})
				rec, cached, err := p.AnalyzeFile(trackCtx, track.AudioPath)

				mu.Lock()
				switch {
				case err == nil:
					batch.Records[idx] = rec
					if cached {
						batch.Cached++
					} else {
						batch.Analyzed++
					}
				case ctx.Err() != nil:
					// cancelled; reported once the pool drains
				case errors.Is(err, transcode.ErrDecode) && !p.cfg.Analysis.FailOnDecodeError:
					batch.Failed++
					logger.Warn("Skipping audio that failed to decode", logging.Fields{
						"track": track.ID,
						"path":  track.AudioPath,
						"error": err.Error(),
					})
				default:
					fail(fmt.Errorf("track %q: %w", track.ID, err))
				}
				done++
				if p.progress != nil {
					p.progress(done, len(pending))
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, idx := range pending {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("Analysis finished", logging.Fields{
		"analyzed": batch.Analyzed,
		"cached":   batch.Cached,
		"failed":   batch.Failed,
		"skipped":  batch.Skipped,
	})
	return batch, nil
}

// FeatureMaps builds one feature map per track. records may be nil or
// shorter than tracks.
func FeatureMaps(tracks []catalog.Track, records []*descriptors.Record) []features.Map {
	maps := make([]features.Map, len(tracks))
	for i := range tracks {
		var rec *descriptors.Record
		if i < len(records) {
			rec = records[i]
		}
		maps[i] = features.TrackFeatures(&tracks[i], rec)
	}
	return maps
}

// Summary reports a finished training run.
type Summary struct {
	Tracks          int
	K               int
	Silhouette      *float64
	ClusterSizes    []int
	Batch           *Batch
	Document        *model.Document
	ModelPath       string
	AssignmentsPath string
}

// Train analyzes the catalog's audio, trains the model and writes both
// artifacts into paths.out_dir.
func (p *Pipeline) Train(ctx context.Context, cat *catalog.Catalog) (*Summary, error) {
	logger := p.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Train",
		"catalog":  cat.Path,
	})

	batch, err := p.AnalyzeTracks(ctx, cat.Tracks)
	if err != nil {
		return nil, fmt.Errorf("analyze audio: %w", err)
	}

	opts := p.cfg.TrainOptions()
	result, err := model.NewTrainer(opts).Fit(ctx, FeatureMaps(cat.Tracks, batch.Records))
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	doc := model.NewDocument(result, opts)
	assignments, err := model.NewAssignments(cat.Tracks, result.Labels)
	if err != nil {
		return nil, err
	}

	modelPath, assignmentsPath, err := Export(p.cfg.Paths.OutDir, doc, assignments)
	if err != nil {
		return nil, err
	}

	logger.Info("Artifacts written", logging.Fields{
		"model":       modelPath,
		"assignments": assignmentsPath,
	})

	return &Summary{
		Tracks:          cat.Len(),
		K:               doc.K,
		Silhouette:      doc.Silhouette,
		ClusterSizes:    result.Sizes,
		Batch:           batch,
		Document:        doc,
		ModelPath:       modelPath,
		AssignmentsPath: assignmentsPath,
	}, nil
}
