package services

import (
	"context"
	"testing"
	"time"

	"github.com/bobby-s-dev/species-archive/internal/models"
	"github.com/bobby-s-dev/species-archive/internal/normalize"
	"github.com/bobby-s-dev/species-archive/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const foxJSON = `{"commonName":"Red Fox","scientificName":"Vulpes vulpes","kingdom":"Animalia","family":"Canidae"}`

const monarchJSON = "```json\n" + `{"commonName":"Monarch Butterfly","scientificName":"Danaus plexippus","kingdom":"Animalia","family":"Nymphalidae"}` + "\n```"

const oakJSON = `{"commonName":"English Oak","scientificName":"Quercus robur","kingdom":"Plantae","family":"Fagaceae"}`

func collectProgress(events *[]Progress) ProgressFunc {
	return func(p Progress) {
		*events = append(*events, p)
	}
}

func assertProgressMonotonic(t *testing.T, events []Progress) {
	t.Helper()
	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent, "event %d went backwards", i)
		assert.Len(t, events[i].Log, i+1)
	}
	assert.Equal(t, 100, events[len(events)-1].Percent)
}

func TestAggregateSpecies_FullPipeline(t *testing.T) {
	f := newFixture()
	f.generator.record = foxJSON
	f.occurrences.observations = []models.Observation{
		{Country: "Norway", Locality: "Tromsø", Lat: ptr(69.6), Lng: ptr(18.9)},
	}
	f.occurrences.images = []string{"b1", "b2"}
	f.community.contribution = models.CommunityContribution{
		Images:      []string{"a1", "a2", "a3"},
		HeroImage:   "hero-large",
		Seasonality: map[int]int{5: 12, 6: 30},
	}
	f.community.ok = true
	f.audio.rec = models.AudioContribution{URL: "https://xc/1.mp3", Author: "A. Recorder"}
	f.weather.snapshot = &models.WeatherSnapshot{Temp: 4.5, ConditionCode: 3, Condition: "Cloudy"}
	f.encyclopedia.pages["Vulpes vulpes"] = models.PageImage{ImageURL: "wiki.jpg", SourceURL: "https://en.wikipedia.org/wiki/Red_fox"}

	var events []Progress
	record, err := f.aggregator(nil).AggregateSpecies(context.Background(), "red fox", collectProgress(&events))
	require.NoError(t, err)

	assert.Equal(t, "Red Fox", record.CommonName)
	assert.Equal(t, []string{"a1", "b1", "a2", "b2", "a3"}, record.GalleryImages)
	assert.Equal(t, "hero-large", record.ImageURL)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Red_fox", record.SourceURL)
	assert.Equal(t, map[int]int{5: 12, 6: 30}, record.SeasonalActivity)
	assert.Equal(t, "https://xc/1.mp3", record.AudioURL)
	assert.Equal(t, "A. Recorder", record.AudioAuthor)

	require.NotNil(t, record.WeatherData)
	assert.Equal(t, "Tromsø", record.WeatherData.Location)
	assert.Equal(t, 69.6, record.WeatherData.Lat)

	assertProgressMonotonic(t, events)
	assert.Equal(t, "Identifying Vulpes vulpes...", events[1].Message)
	assert.Contains(t, events[len(events)-2].Message, "Finalizing")
}

func TestAggregateSpecies_GeneratedImageWins(t *testing.T) {
	f := newFixture()
	f.generator.record = foxJSON
	f.generator.image = "data:image/png;base64,AAAA"
	f.community.contribution = models.CommunityContribution{HeroImage: "hero", Images: []string{"a1"}}
	f.community.ok = true
	f.encyclopedia.pages["Vulpes vulpes"] = models.PageImage{ImageURL: "wiki.jpg", SourceURL: "https://en.wikipedia.org/wiki/Red_fox"}

	record, err := f.aggregator(nil).AggregateSpecies(context.Background(), "red fox", nil)
	require.NoError(t, err)

	assert.Equal(t, "data:image/png;base64,AAAA", record.ImageURL)
	assert.Empty(t, record.SourceURL)
	assert.Zero(t, f.encyclopedia.calls, "page image lookup is skipped when an image was generated")
}

func TestAggregateSpecies_EncyclopediaFallback(t *testing.T) {
	f := newFixture()
	f.generator.record = foxJSON
	f.encyclopedia.pages["Vulpes vulpes"] = models.PageImage{ImageURL: "wiki.jpg", SourceURL: "https://en.wikipedia.org/wiki/Red_fox"}

	record, err := f.aggregator(nil).AggregateSpecies(context.Background(), "red fox", nil)
	require.NoError(t, err)

	assert.Equal(t, "wiki.jpg", record.ImageURL)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Red_fox", record.SourceURL)
}

func TestAggregateSpecies_SearchURLAttribution(t *testing.T) {
	f := newFixture()
	f.generator.record = foxJSON

	record, err := f.aggregator(nil).AggregateSpecies(context.Background(), "red fox", nil)
	require.NoError(t, err)

	assert.Empty(t, record.ImageURL)
	assert.Equal(t, client.SearchURL("Vulpes vulpes"), record.SourceURL)
}

func TestAggregateSpecies_NoAudioForNonAnimals(t *testing.T) {
	f := newFixture()
	f.generator.record = oakJSON
	f.audio.rec = models.AudioContribution{URL: "https://xc/never.mp3"}

	record, err := f.aggregator(nil).AggregateSpecies(context.Background(), "oak", nil)
	require.NoError(t, err)

	assert.Zero(t, f.audio.calls.Load())
	assert.Empty(t, record.AudioURL)
}

func TestAggregateSpecies_NoGeotaggedObservations(t *testing.T) {
	f := newFixture()
	f.generator.record = monarchJSON
	f.weather.snapshot = &models.WeatherSnapshot{Temp: 20}

	var events []Progress
	record, err := f.aggregator(nil).AggregateSpecies(context.Background(), "Monarch Butterfly", collectProgress(&events))
	require.NoError(t, err)

	assert.Equal(t, "Danaus plexippus", record.ScientificName)
	assert.Nil(t, record.WeatherData)
	assert.Zero(t, f.weather.calls.Load())
	for _, e := range events {
		assert.NotEqual(t, 85, e.Percent)
	}
	assertProgressMonotonic(t, events)
}

func TestAggregateSpecies_WeatherUsesFirstGeotagged(t *testing.T) {
	f := newFixture()
	f.generator.record = foxJSON
	f.occurrences.observations = []models.Observation{
		{Country: "Atlantis"},
		{Country: "Canada", Lat: ptr(45.4), Lng: ptr(-75.7)},
		{Country: "Japan", Lat: ptr(35.6), Lng: ptr(139.7)},
	}
	f.weather.snapshot = &models.WeatherSnapshot{Temp: -3}

	record, err := f.aggregator(nil).AggregateSpecies(context.Background(), "red fox", nil)
	require.NoError(t, err)

	require.NotNil(t, record.WeatherData)
	assert.Equal(t, "Canada", record.WeatherData.Location)
	assert.EqualValues(t, 1, f.weather.calls.Load())
}

func TestAggregateSpecies_AllSourcesFail(t *testing.T) {
	f := newFixture()
	f.generator.record = foxJSON
	f.occurrences.observations = []models.Observation{{Country: "Norway", Lat: ptr(60), Lng: ptr(10)}}

	var events []Progress
	record, err := f.aggregator(nil).AggregateSpecies(context.Background(), "red fox", collectProgress(&events))
	require.NoError(t, err)

	assert.Equal(t, "Red Fox", record.CommonName)
	assert.Nil(t, record.WeatherData)
	assert.Nil(t, record.GalleryImages)
	assert.Empty(t, record.AudioURL)
	assertProgressMonotonic(t, events)
}

func TestAggregateSpecies_ProseIsNotFound(t *testing.T) {
	f := newFixture()
	f.generator.record = "I'm sorry, I couldn't find any species by that name."
	f.generator.suggestion = "Red Fox"

	var events []Progress
	_, err := f.aggregator(nil).AggregateSpecies(context.Background(), "rde fxo", collectProgress(&events))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, normalize.ErrMalformed)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Red Fox", nf.Suggestion)
	assert.EqualValues(t, 1, f.generator.suggestionCalls.Load())
	assert.Zero(t, f.generator.imageCalls.Load())

	for _, e := range events {
		assert.Less(t, e.Percent, 100)
	}
}

func TestAggregateSpecies_GenerationErrorWithoutSuggestion(t *testing.T) {
	f := newFixture()
	f.generator.recordErr = errUnavailable

	_, err := f.aggregator(nil).AggregateSpecies(context.Background(), "xyzzy", nil)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, nf.Suggestion)
	assert.ErrorIs(t, err, errUnavailable)
}

func TestAggregateSpecies_EmptyQuery(t *testing.T) {
	f := newFixture()

	_, err := f.aggregator(nil).AggregateSpecies(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, f.generator.recordCalls.Load())
}

func TestAggregateSpecies_EachQueryIsFresh(t *testing.T) {
	cache := NewListCache(time.Hour, 10, zap.NewNop())
	defer cache.Stop()

	f := newFixture()
	f.generator.record = foxJSON
	agg := f.aggregator(cache)

	first, err := agg.AggregateSpecies(context.Background(), "Red Fox", nil)
	require.NoError(t, err)
	first.CommonName = "mutated by caller"

	var events []Progress
	second, err := agg.AggregateSpecies(context.Background(), "  red fox ", collectProgress(&events))
	require.NoError(t, err)

	assert.Equal(t, "Red Fox", second.CommonName)
	assert.EqualValues(t, 2, f.generator.recordCalls.Load())
	require.NotEmpty(t, events)
	assert.Equal(t, 10, events[0].Percent)
	assert.Equal(t, 100, events[len(events)-1].Percent)
	assert.Equal(t, 0, cache.GetStats()["items"])
}

func TestAggregateSpecies_Stats(t *testing.T) {
	f := newFixture()
	f.generator.record = foxJSON
	f.community.contribution = models.CommunityContribution{Images: []string{"a1"}}
	f.community.ok = true
	agg := f.aggregator(nil)

	_, err := agg.AggregateSpecies(context.Background(), "red fox", nil)
	require.NoError(t, err)

	stats := agg.GetStats()
	assert.Equal(t, 1, stats["success_count"])
	assert.Equal(t, map[string]int{"community": 1}, stats["contributions"])
	assert.False(t, agg.GetLastAggregationTime().IsZero())
}

func TestParseSuggestion(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		text   string
		want   string
		wantOK bool
	}{
		{"plain", "rde fox", "Red Fox", "Red Fox", true},
		{"quoted with period", "rde fox", `"Red Fox".`, "Red Fox", true},
		{"first line only", "rde fox", "Red Fox\nThis is a small canid.", "Red Fox", true},
		{"null", "qwerty", "null", "", false},
		{"none", "qwerty", "None", "", false},
		{"no match phrase", "qwerty", "No relevant match", "", false},
		{"no match sentence", "qwerty", "No relevant match found.", "", false},
		{"null with note", "qwerty", "null (not a species)", "", false},
		{"none with dash", "qwerty", "None - that is not an organism", "", false},
		{"word starting with none", "nonsuch", "Nonesuch moth", "Nonesuch moth", true},
		{"same as query", "red fox", "Red Fox", "", false},
		{"empty", "qwerty", "  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseSuggestion(tt.query, tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAutocomplete(t *testing.T) {
	f := newFixture()
	f.encyclopedia.titles = []string{"Red fox", "Red panda"}
	agg := f.aggregator(nil)

	assert.Equal(t, []string{"Red fox", "Red panda"}, agg.Autocomplete(context.Background(), "red"))
	assert.Nil(t, agg.Autocomplete(context.Background(), " "))
}
