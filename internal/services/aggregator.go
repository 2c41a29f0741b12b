package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bobby-s-dev/species-archive/internal/config"
	"github.com/bobby-s-dev/species-archive/internal/models"
	"github.com/bobby-s-dev/species-archive/internal/normalize"
	"github.com/bobby-s-dev/species-archive/pkg/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts client.GenerateOptions) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, bool)
}

type OccurrenceSource interface {
	RecentObservations(ctx context.Context, name string) ([]models.Observation, bool)
	GalleryImages(ctx context.Context, name string) ([]string, bool)
}

type CommunitySource interface {
	Community(ctx context.Context, name string) (models.CommunityContribution, bool)
}

type AudioSource interface {
	Recording(ctx context.Context, name string) (models.AudioContribution, bool)
}

type EncyclopediaSource interface {
	PageImage(ctx context.Context, name string) (models.PageImage, bool)
	Suggestions(ctx context.Context, prefix string) ([]string, bool)
}

type WeatherSource interface {
	CurrentConditions(ctx context.Context, lat, lng float64, label string) (*models.WeatherSnapshot, bool)
}

// Sources are the adapters the aggregator fans out to.
type Sources struct {
	Generator    TextGenerator
	Occurrences  OccurrenceSource
	Community    CommunitySource
	Audio        AudioSource
	Encyclopedia EncyclopediaSource
	Weather      WeatherSource
}

type Options struct {
	Temperature     float32
	ListTemperature float32
}

type Aggregator struct {
	sources Sources
	cache   *ListCache
	logger  *zap.Logger
	opts    Options

	mu                sync.RWMutex
	lastAggregation   time.Time
	successCount      int
	failureCount      int
	contributionCount map[string]int
}

func NewAggregator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sourceConfig := client.ClientConfig{
		Timeout:        cfg.Sources.Timeout,
		UserAgent:      cfg.Sources.UserAgent,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryDelay:     cfg.Retry.Delay,
		Multiplier:     cfg.Retry.Multiplier,
		Threshold:      cfg.CircuitBreaker.Threshold,
		BreakerTimeout: cfg.CircuitBreaker.Timeout,
	}
	communityConfig := sourceConfig
	communityConfig.Timeout = cfg.Sources.CommunityTimeout

	gemini, err := client.NewGeminiClient(ctx, client.GeminiConfig{
		APIKey:       cfg.Gemini.APIKey,
		TextModel:    cfg.Gemini.TextModel,
		ImageModel:   cfg.Gemini.ImageModel,
		TextTimeout:  cfg.Gemini.Timeout,
		ImageTimeout: cfg.Gemini.ImageTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	sources := Sources{
		Generator:    gemini,
		Occurrences:  client.NewGBIFClient(cfg.Sources.GBIFURL, sourceConfig, logger),
		Community:    client.NewINaturalistClient(cfg.Sources.INaturalistURL, communityConfig, logger),
		Audio:        client.NewXenoCantoClient(cfg.Sources.XenoCantoURL, sourceConfig, logger),
		Encyclopedia: client.NewWikipediaClient(cfg.Sources.WikipediaURL, sourceConfig, logger),
		Weather:      client.NewOpenMeteoClient(cfg.Sources.OpenMeteoURL, sourceConfig, logger),
	}
	logger.Info("Source clients initialized",
		zap.String("text_model", cfg.Gemini.TextModel),
		zap.Duration("source_timeout", cfg.Sources.Timeout))

	cache := NewListCache(cfg.Cache.Duration, cfg.Cache.MaxSize, logger)

	return New(sources, cache, logger, Options{
		Temperature:     float32(cfg.Gemini.Temperature),
		ListTemperature: float32(cfg.Gemini.ListTemperature),
	}), nil
}

// New wires an aggregator from already constructed sources. cache may be nil.
func New(sources Sources, cache *ListCache, logger *zap.Logger, opts Options) *Aggregator {
	return &Aggregator{
		sources:           sources,
		cache:             cache,
		logger:            logger,
		opts:              opts,
		contributionCount: make(map[string]int),
	}
}

// Close stops background cache maintenance.
func (a *Aggregator) Close() {
	if a.cache != nil {
		a.cache.Stop()
	}
}

// contributions collects the tier-1 fan-out. Each field is written by exactly
// one goroutine.
type contributions struct {
	observations []models.Observation
	community    models.CommunityContribution
	gbifImages   []string
	audio        models.AudioContribution
	page         models.PageImage
}

// AggregateSpecies builds one record for query. Every call generates afresh.
// Only generation or normalization failure aborts; every enrichment source
// may fail silently.
func (a *Aggregator) AggregateSpecies(ctx context.Context, query string, onProgress ProgressFunc) (*models.SpeciesRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	progress := newProgressTracker(onProgress)
	startTime := time.Now()
	progress.report(10, "Consulting the archives...")

	raw, err := a.sources.Generator.Generate(ctx, speciesPrompt(query), client.GenerateOptions{
		SystemInstruction: speciesInstruction,
		JSONMode:          true,
		Temperature:       &a.opts.Temperature,
	})
	if err != nil {
		return nil, a.fail(ctx, query, err)
	}

	record, err := normalize.ExtractRecord(raw)
	if err != nil {
		a.logger.Warn("Generator output could not be normalized",
			zap.String("query", query),
			zap.Int("raw_length", len(raw)),
			zap.Error(err))
		return nil, a.fail(ctx, query, err)
	}

	searchName := record.DisplayName()
	progress.report(40, fmt.Sprintf("Identifying %s...", searchName))

	progress.report(50, "Visualizing species...")
	generatedImage, _ := a.sources.Generator.GenerateImage(ctx, imagePrompt(record.CommonName, record.ScientificName))

	progress.report(70, "Gathering field observations...")
	found := a.fanOut(ctx, searchName, isAnimal(record.Kingdom), generatedImage == "")

	var weather *models.WeatherSnapshot
	if obs, ok := firstGeotagged(found.observations); ok {
		progress.report(85, "Analyzing live conditions...")
		if w, ok := a.sources.Weather.CurrentConditions(ctx, *obs.Lat, *obs.Lng, obs.LocationLabel()); ok {
			weather = w
			a.countContribution("weather")
		}
	}

	progress.report(95, "Finalizing entry...")
	merge(record, generatedImage, found, weather, searchName)
	progress.report(100, "Entry complete")

	a.mu.Lock()
	a.lastAggregation = time.Now()
	a.successCount++
	a.mu.Unlock()

	a.logger.Info("Species aggregated",
		zap.String("query", query),
		zap.String("name", searchName),
		zap.Bool("generated_image", generatedImage != ""),
		zap.Int("observations", len(record.Observations)),
		zap.Int("gallery", len(record.GalleryImages)),
		zap.Duration("duration", time.Since(startTime)))
	return record, nil
}

// fanOut runs every tier-1 adapter concurrently and waits for all of them.
// Tasks never return errors, so one slow or failing source cannot cancel the
// others.
func (a *Aggregator) fanOut(ctx context.Context, name string, animal, needPageImage bool) contributions {
	var found contributions
	var g errgroup.Group

	g.Go(func() error {
		if obs, ok := a.sources.Occurrences.RecentObservations(ctx, name); ok {
			found.observations = obs
			a.countContribution("occurrences")
		}
		return nil
	})
	g.Go(func() error {
		if c, ok := a.sources.Community.Community(ctx, name); ok {
			found.community = c
			a.countContribution("community")
		}
		return nil
	})
	g.Go(func() error {
		if images, ok := a.sources.Occurrences.GalleryImages(ctx, name); ok {
			found.gbifImages = images
			a.countContribution("occurrence_images")
		}
		return nil
	})
	if animal {
		g.Go(func() error {
			if rec, ok := a.sources.Audio.Recording(ctx, name); ok {
				found.audio = rec
				a.countContribution("audio")
			}
			return nil
		})
	}
	if needPageImage {
		g.Go(func() error {
			if page, ok := a.sources.Encyclopedia.PageImage(ctx, name); ok {
				found.page = page
				a.countContribution("encyclopedia")
			}
			return nil
		})
	}

	g.Wait()
	return found
}

// merge fills the enrichment fields of record. Primary image precedence is
// generated, then community hero, then encyclopedia. The attribution link is
// only set when the image was not generated.
func merge(record *models.SpeciesRecord, generatedImage string, found contributions, weather *models.WeatherSnapshot, searchName string) {
	switch {
	case generatedImage != "":
		record.ImageURL = generatedImage
	case found.community.HeroImage != "":
		record.ImageURL = found.community.HeroImage
	default:
		record.ImageURL = found.page.ImageURL
	}

	if generatedImage == "" {
		record.SourceURL = found.page.SourceURL
		if record.SourceURL == "" {
			record.SourceURL = client.SearchURL(searchName)
		}
	}

	record.Observations = found.observations
	record.GalleryImages = mergeGallery(found.community.Images, found.gbifImages)
	record.SeasonalActivity = found.community.Seasonality
	record.AudioURL = found.audio.URL
	record.AudioAuthor = found.audio.Author
	record.WeatherData = weather
}

// fail runs the single courtesy suggestion lookup and wraps the cause.
func (a *Aggregator) fail(ctx context.Context, query string, cause error) error {
	a.mu.Lock()
	a.failureCount++
	a.mu.Unlock()

	suggestion, _ := a.SuggestCorrection(ctx, query)
	a.logger.Info("Species not found",
		zap.String("query", query),
		zap.String("suggestion", suggestion),
		zap.Error(cause))

	return &NotFoundError{Query: query, Suggestion: suggestion, Err: cause}
}

// SuggestCorrection asks the generator for one corrected name. Any failure
// yields no suggestion.
func (a *Aggregator) SuggestCorrection(ctx context.Context, query string) (string, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false
	}

	text, err := a.sources.Generator.Generate(ctx, suggestionPrompt(query), client.GenerateOptions{})
	if err != nil {
		a.logger.Debug("Suggestion lookup failed", zap.String("query", query), zap.Error(err))
		return "", false
	}
	return parseSuggestion(query, text)
}

func parseSuggestion(query, text string) (string, bool) {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	suggestion := strings.TrimSpace(strings.NewReplacer(`"`, "", "'", "", "`", "").Replace(line))
	suggestion = strings.TrimRight(suggestion, ".")

	lower := strings.ToLower(suggestion)
	if lower == "" || strings.Contains(lower, "no relevant match") || declines(lower) {
		return "", false
	}
	if strings.EqualFold(suggestion, query) {
		return "", false
	}
	return suggestion, true
}

// declines reports a lower-cased reply that is "null" or "none", alone or
// followed by anything other than a letter.
func declines(line string) bool {
	for _, word := range []string{"null", "none"} {
		rest, ok := strings.CutPrefix(line, word)
		if !ok {
			continue
		}
		if rest == "" {
			return true
		}
		if r, _ := utf8.DecodeRuneInString(rest); !unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Autocomplete offers encyclopedia titles for a partial query.
func (a *Aggregator) Autocomplete(ctx context.Context, prefix string) []string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}
	titles, _ := a.sources.Encyclopedia.Suggestions(ctx, prefix)
	return titles
}

func (a *Aggregator) countContribution(source string) {
	a.mu.Lock()
	a.contributionCount[source]++
	a.mu.Unlock()
}

func (a *Aggregator) GetLastAggregationTime() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastAggregation
}

func (a *Aggregator) GetStats() map[string]interface{} {
	a.mu.RLock()
	defer a.mu.RUnlock()

	contributions := make(map[string]int, len(a.contributionCount))
	for k, v := range a.contributionCount {
		contributions[k] = v
	}

	stats := map[string]interface{}{
		"last_aggregation": a.lastAggregation,
		"success_count":    a.successCount,
		"failure_count":    a.failureCount,
		"contributions":    contributions,
	}
	if a.cache != nil {
		stats["cache_stats"] = a.cache.GetStats()
	}
	return stats
}

func isAnimal(kingdom string) bool {
	return strings.EqualFold(strings.TrimSpace(kingdom), "Animalia")
}

func firstGeotagged(observations []models.Observation) (models.Observation, bool) {
	for _, o := range observations {
		if o.HasCoordinates() {
			return o, true
		}
	}
	return models.Observation{}, false
}
