package client

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/bobby-s-dev/species-archive/internal/models"
	"go.uber.org/zap"
)

const wikiSuggestionCap = 5

// WikipediaClient looks up a page thumbnail for a name and offers title
// completions.
type WikipediaClient struct {
	*BaseClient
	baseURL string
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiPage struct {
	PageID   int64   `json:"pageid"`
	Missing  *string `json:"missing,omitempty"`
	FullURL  string  `json:"fullurl"`
	Original *struct {
		Source string `json:"source"`
	} `json:"original"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
}

type wikiImageResponse struct {
	Query struct {
		Pages map[string]wikiPage `json:"pages"`
	} `json:"query"`
}

func NewWikipediaClient(baseURL string, config ClientConfig, logger *zap.Logger) *WikipediaClient {
	return &WikipediaClient{
		BaseClient: NewBaseClient("wikipedia", config, logger),
		baseURL:    baseURL,
	}
}

// PageImage finds the best matching article and returns its lead image and
// canonical URL.
func (c *WikipediaClient) PageImage(ctx context.Context, name string) (models.PageImage, bool) {
	search := url.Values{}
	search.Set("action", "query")
	search.Set("format", "json")
	search.Set("list", "search")
	search.Set("srsearch", name)
	search.Set("srlimit", "1")

	var found wikiSearchResponse
	if !c.FetchJSON(ctx, c.baseURL+"?"+search.Encode(), &found) || len(found.Query.Search) == 0 {
		return models.PageImage{}, false
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("prop", "pageimages|info")
	params.Set("piprop", "thumbnail|original")
	params.Set("pithumbsize", "1000")
	params.Set("inprop", "url")
	params.Set("titles", found.Query.Search[0].Title)
	params.Set("redirects", "1")

	var data wikiImageResponse
	if !c.FetchJSON(ctx, c.baseURL+"?"+params.Encode(), &data) {
		return models.PageImage{}, false
	}

	for _, page := range data.Query.Pages {
		if page.PageID <= 0 || page.Missing != nil {
			continue
		}
		result := models.PageImage{SourceURL: page.FullURL}
		switch {
		case page.Original != nil && page.Original.Source != "":
			result.ImageURL = page.Original.Source
		case page.Thumbnail != nil:
			result.ImageURL = page.Thumbnail.Source
		}
		return result, result.ImageURL != "" || result.SourceURL != ""
	}
	return models.PageImage{}, false
}

// Suggestions returns up to five article titles completing prefix.
func (c *WikipediaClient) Suggestions(ctx context.Context, prefix string) ([]string, bool) {
	params := url.Values{}
	params.Set("action", "opensearch")
	params.Set("search", prefix)
	params.Set("limit", "10")
	params.Set("namespace", "0")
	params.Set("format", "json")

	// opensearch answers with a positional array: [query, titles, descriptions, urls]
	var data []json.RawMessage
	if !c.FetchJSON(ctx, c.baseURL+"?"+params.Encode(), &data) || len(data) < 2 {
		return nil, false
	}

	var titles []string
	if err := json.Unmarshal(data[1], &titles); err != nil {
		return nil, false
	}
	if len(titles) > wikiSuggestionCap {
		titles = titles[:wikiSuggestionCap]
	}
	return titles, len(titles) > 0
}
