package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bobby-s-dev/species-archive/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const inatObservationLimit = 6

// INaturalistClient reads research-grade community observations: the first
// gallery source, a hero photo and month-of-year activity counts.
type INaturalistClient struct {
	*BaseClient
	baseURL string
}

type inatTaxaResponse struct {
	Results []struct {
		ID int64 `json:"id"`
	} `json:"results"`
}

type inatObservationsResponse struct {
	Results []struct {
		Photos []struct {
			URL string `json:"url"`
		} `json:"photos"`
	} `json:"results"`
}

type inatHistogramResponse struct {
	Results struct {
		MonthOfYear map[string]int `json:"month_of_year"`
	} `json:"results"`
}

func NewINaturalistClient(baseURL string, config ClientConfig, logger *zap.Logger) *INaturalistClient {
	return &INaturalistClient{
		BaseClient: NewBaseClient("inaturalist", config, logger),
		baseURL:    baseURL,
	}
}

// SearchURL is the public search page used as attribution when no better
// source page is known.
func SearchURL(name string) string {
	return "https://www.inaturalist.org/search?q=" + url.QueryEscape(name)
}

func (c *INaturalistClient) SearchTaxon(ctx context.Context, name string) (int64, bool) {
	params := url.Values{}
	params.Set("q", name)
	params.Set("rank", "species")
	params.Set("per_page", "1")

	var data inatTaxaResponse
	if !c.FetchJSON(ctx, fmt.Sprintf("%s/taxa?%s", c.baseURL, params.Encode()), &data) {
		return 0, false
	}
	if len(data.Results) == 0 || data.Results[0].ID == 0 {
		return 0, false
	}
	return data.Results[0].ID, true
}

// Community resolves the taxon and then fetches photos and the seasonal
// histogram in parallel. Either half may be missing.
func (c *INaturalistClient) Community(ctx context.Context, name string) (models.CommunityContribution, bool) {
	var contribution models.CommunityContribution

	taxonID, ok := c.SearchTaxon(ctx, name)
	if !ok {
		return contribution, false
	}
	id := strconv.FormatInt(taxonID, 10)

	var photos []string
	var seasonality map[int]int

	var g errgroup.Group
	g.Go(func() error {
		photos = c.photos(ctx, id)
		return nil
	})
	g.Go(func() error {
		seasonality = c.histogram(ctx, id)
		return nil
	})
	g.Wait()

	for _, p := range photos {
		contribution.Images = append(contribution.Images, strings.Replace(p, "square", "medium", 1))
	}
	if len(photos) > 0 {
		contribution.HeroImage = strings.Replace(photos[0], "square", "large", 1)
	}
	contribution.Seasonality = seasonality

	return contribution, len(contribution.Images) > 0 || len(seasonality) > 0
}

func (c *INaturalistClient) photos(ctx context.Context, taxonID string) []string {
	params := url.Values{}
	params.Set("taxon_id", taxonID)
	params.Set("photos", "true")
	params.Set("quality_grade", "research")
	params.Set("per_page", strconv.Itoa(inatObservationLimit))
	params.Set("order_by", "votes")

	var data inatObservationsResponse
	if !c.FetchJSON(ctx, fmt.Sprintf("%s/observations?%s", c.baseURL, params.Encode()), &data) {
		return nil
	}

	var urls []string
	for _, r := range data.Results {
		if len(r.Photos) > 0 && r.Photos[0].URL != "" {
			urls = append(urls, r.Photos[0].URL)
		}
	}
	return urls
}

func (c *INaturalistClient) histogram(ctx context.Context, taxonID string) map[int]int {
	params := url.Values{}
	params.Set("taxon_id", taxonID)
	params.Set("date_field", "observed")
	params.Set("interval", "month_of_year")

	var data inatHistogramResponse
	if !c.FetchJSON(ctx, fmt.Sprintf("%s/observations/histogram?%s", c.baseURL, params.Encode()), &data) {
		return nil
	}

	months := make(map[int]int, len(data.Results.MonthOfYear))
	for key, count := range data.Results.MonthOfYear {
		month, err := strconv.Atoi(key)
		if err != nil || month < 1 || month > 12 {
			continue
		}
		months[month] = count
	}
	if len(months) == 0 {
		return nil
	}
	return months
}
