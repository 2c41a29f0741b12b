package services

import (
	"context"
	"errors"
	"strings"

	"github.com/bobby-s-dev/species-archive/internal/models"
	"github.com/bobby-s-dev/species-archive/internal/normalize"
	"github.com/bobby-s-dev/species-archive/pkg/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	relatedLimit  = 4
	letterLimit   = 12
	featuredLimit = 5

	thumbnailConcurrency = 4
)

// ListRelated returns species related to name. Items whose thumbnail lookup
// fails are kept without an image.
func (a *Aggregator) ListRelated(ctx context.Context, name, family string) ([]models.RelatedSpeciesStub, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyQuery
	}
	family = strings.TrimSpace(family)
	if family == "" {
		family = "unknown"
	}

	key := "related:" + strings.ToLower(name) + "|" + strings.ToLower(family)
	return a.cachedStubs(ctx, key, relatedPrompt(name, family), relatedLimit), nil
}

// ListByLetter returns up to twelve species starting with letter.
func (a *Aggregator) ListByLetter(ctx context.Context, letter string) ([]models.RelatedSpeciesStub, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return nil, ErrInvalidLetter
	}

	return a.cachedStubs(ctx, "letter:"+letter, letterPrompt(letter), letterLimit), nil
}

func (a *Aggregator) cachedStubs(ctx context.Context, key, prompt string, limit int) []models.RelatedSpeciesStub {
	if a.cache != nil {
		if stubs, ok := a.cache.GetStubs(key); ok {
			return stubs
		}
	}

	stubs := a.listStubs(ctx, prompt, limit)
	if a.cache != nil && len(stubs) > 0 {
		a.cache.SetStubs(key, stubs)
	}
	return stubs
}

// listStubs is the reduced pipeline: one generative call, normalization, then
// a thumbnail lookup per item. Any failure short of the items themselves
// leaves an empty image rather than an error.
func (a *Aggregator) listStubs(ctx context.Context, prompt string, limit int) []models.RelatedSpeciesStub {
	raw, err := a.sources.Generator.Generate(ctx, prompt, client.GenerateOptions{
		SystemInstruction: listInstruction,
		JSONMode:          true,
		Temperature:       &a.opts.ListTemperature,
	})
	if err != nil {
		a.logger.Warn("List generation failed", zap.Error(err))
		return []models.RelatedSpeciesStub{}
	}

	stubs, err := normalize.ExtractList(raw)
	if err != nil {
		a.logger.Warn("List output could not be normalized", zap.Error(err))
		return []models.RelatedSpeciesStub{}
	}
	if len(stubs) > limit {
		stubs = stubs[:limit]
	}

	a.attachThumbnails(ctx, len(stubs), func(i int) string {
		return stubs[i].LookupName()
	}, func(i int, url string) {
		stubs[i].ImageURL = url
	})
	return stubs
}

// ListFeatured returns the curated featured entries, from cache when the
// scheduler has refreshed them recently.
func (a *Aggregator) ListFeatured(ctx context.Context) []models.SpeciesRecord {
	if a.cache != nil {
		if featured, ok := a.cache.GetFeatured(); ok {
			return featured
		}
	}

	featured, err := a.generateFeatured(ctx)
	if err != nil {
		a.logger.Warn("Featured generation failed", zap.Error(err))
		return []models.SpeciesRecord{}
	}
	if a.cache != nil {
		a.cache.SetFeatured(featured)
	}
	return featured
}

// RefreshFeatured regenerates the featured list and replaces the cached copy.
func (a *Aggregator) RefreshFeatured(ctx context.Context) error {
	featured, err := a.generateFeatured(ctx)
	if err != nil {
		return err
	}
	if a.cache != nil {
		a.cache.SetFeatured(featured)
	}
	a.logger.Info("Featured species refreshed", zap.Int("count", len(featured)))
	return nil
}

var errNoFeatured = errors.New("generator produced no featured species")

func (a *Aggregator) generateFeatured(ctx context.Context) ([]models.SpeciesRecord, error) {
	raw, err := a.sources.Generator.Generate(ctx, featuredPrompt(), client.GenerateOptions{
		SystemInstruction: featuredInstruction,
		JSONMode:          true,
		Temperature:       &a.opts.ListTemperature,
	})
	if err != nil {
		return nil, err
	}

	featured, err := normalize.ExtractFeatured(raw)
	if err != nil {
		return nil, err
	}
	if len(featured) == 0 {
		return nil, errNoFeatured
	}
	if len(featured) > featuredLimit {
		featured = featured[:featuredLimit]
	}

	a.attachThumbnails(ctx, len(featured), func(i int) string {
		return featured[i].DisplayName()
	}, func(i int, url string) {
		featured[i].ImageURL = url
	})
	return featured, nil
}

// attachThumbnails looks up an encyclopedia image for each of n items in
// parallel. set is only called for items that found one; each index is
// written by one goroutine.
func (a *Aggregator) attachThumbnails(ctx context.Context, n int, name func(int) string, set func(int, string)) {
	var g errgroup.Group
	g.SetLimit(thumbnailConcurrency)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if page, ok := a.sources.Encyclopedia.PageImage(ctx, name(i)); ok && page.ImageURL != "" {
				set(i, page.ImageURL)
			}
			return nil
		})
	}
	g.Wait()
}
