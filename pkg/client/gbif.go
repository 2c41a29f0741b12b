package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/bobby-s-dev/species-archive/internal/models"
	"go.uber.org/zap"
)

const (
	gbifObservationLimit = 4
	gbifImageSearchLimit = 10
	gbifGalleryCap       = 8
	gbifYearWindow       = 5
)

// GBIFClient resolves names against the GBIF backbone and reads occurrence
// records. It feeds both the observation list and the second gallery source.
type GBIFClient struct {
	*BaseClient
	baseURL string
	now     func() time.Time
}

type gbifMatchResponse struct {
	UsageKey  int64  `json:"usageKey"`
	MatchType string `json:"matchType"`
}

type gbifOccurrenceResponse struct {
	Results []gbifOccurrence `json:"results"`
}

type gbifOccurrence struct {
	Country          string   `json:"country"`
	EventDate        string   `json:"eventDate"`
	BasisOfRecord    string   `json:"basisOfRecord"`
	RecordedBy       string   `json:"recordedBy"`
	Locality         string   `json:"locality"`
	StateProvince    string   `json:"stateProvince"`
	DecimalLatitude  *float64 `json:"decimalLatitude"`
	DecimalLongitude *float64 `json:"decimalLongitude"`
	Media            []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"media"`
}

func NewGBIFClient(baseURL string, config ClientConfig, logger *zap.Logger) *GBIFClient {
	return &GBIFClient{
		BaseClient: NewBaseClient("gbif", config, logger),
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// MatchName fuzzy-matches a free-text name to a backbone taxon key. A
// NONE match is reported as no key.
func (c *GBIFClient) MatchName(ctx context.Context, name string) (int64, bool) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("verbose", "false")

	var match gbifMatchResponse
	if !c.FetchJSON(ctx, fmt.Sprintf("%s/species/match?%s", c.baseURL, params.Encode()), &match) {
		return 0, false
	}
	if match.UsageKey == 0 || match.MatchType == "NONE" {
		return 0, false
	}
	return match.UsageKey, true
}

// RecentObservations returns up to four geotagged records from the last
// five years.
func (c *GBIFClient) RecentObservations(ctx context.Context, name string) ([]models.Observation, bool) {
	taxonKey, ok := c.MatchName(ctx, name)
	if !ok {
		return nil, false
	}

	year := c.now().Year()
	params := url.Values{}
	params.Set("taxonKey", strconv.FormatInt(taxonKey, 10))
	params.Set("limit", strconv.Itoa(gbifObservationLimit))
	params.Set("hasCoordinate", "true")
	params.Set("year", fmt.Sprintf("%d,%d", year-gbifYearWindow, year))

	var data gbifOccurrenceResponse
	if !c.FetchJSON(ctx, fmt.Sprintf("%s/occurrence/search?%s", c.baseURL, params.Encode()), &data) {
		return nil, false
	}

	observations := make([]models.Observation, 0, len(data.Results))
	for _, record := range data.Results {
		observations = append(observations, toObservation(record))
	}
	return observations, len(observations) > 0
}

// GalleryImages returns still-image URLs attached to occurrence records,
// deduplicated and capped.
func (c *GBIFClient) GalleryImages(ctx context.Context, name string) ([]string, bool) {
	taxonKey, ok := c.MatchName(ctx, name)
	if !ok {
		return nil, false
	}

	params := url.Values{}
	params.Set("taxonKey", strconv.FormatInt(taxonKey, 10))
	params.Set("mediaType", "StillImage")
	params.Set("limit", strconv.Itoa(gbifImageSearchLimit))

	var data gbifOccurrenceResponse
	if !c.FetchJSON(ctx, fmt.Sprintf("%s/occurrence/search?%s", c.baseURL, params.Encode()), &data) {
		return nil, false
	}

	seen := make(map[string]bool)
	var images []string
	for _, record := range data.Results {
		for _, media := range record.Media {
			if media.Type != "StillImage" || media.Identifier == "" || seen[media.Identifier] {
				continue
			}
			seen[media.Identifier] = true
			images = append(images, media.Identifier)
			if len(images) == gbifGalleryCap {
				return images, true
			}
		}
	}
	return images, len(images) > 0
}

func toObservation(record gbifOccurrence) models.Observation {
	obs := models.Observation{
		Country:       record.Country,
		Date:          formatEventDate(record.EventDate),
		BasisOfRecord: models.ParseBasisOfRecord(record.BasisOfRecord).Label(),
		RecordedBy:    record.RecordedBy,
		Locality:      record.Locality,
		Lat:           record.DecimalLatitude,
		Lng:           record.DecimalLongitude,
	}
	if obs.Country == "" {
		obs.Country = "International Waters"
	}
	if obs.RecordedBy == "" {
		obs.RecordedBy = "Anonymous"
	}
	if obs.Locality == "" {
		obs.Locality = record.StateProvince
	}
	return obs
}

// formatEventDate renders GBIF event dates, which may be partial or an
// ISO interval, as "Jan 2, 2006".
func formatEventDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Unknown Date"
	}
	if i := strings.Index(raw, "/"); i > 0 {
		raw = raw[:i]
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return "Unknown Date"
	}
	return t.Format("Jan 2, 2006")
}
