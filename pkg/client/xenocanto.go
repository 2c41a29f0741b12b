package client

import (
	"context"
	"net/url"

	"github.com/bobby-s-dev/species-archive/internal/models"
	"go.uber.org/zap"
)

type XenoCantoClient struct {
	*BaseClient
	baseURL string
}

type xenoCantoResponse struct {
	Recordings []struct {
		File string `json:"file"`
		Rec  string `json:"rec"`
	} `json:"recordings"`
}

func NewXenoCantoClient(baseURL string, config ClientConfig, logger *zap.Logger) *XenoCantoClient {
	return &XenoCantoClient{
		BaseClient: NewBaseClient("xeno-canto", config, logger),
		baseURL:    baseURL,
	}
}

// Recording returns the first quality-A recording for a scientific name.
func (c *XenoCantoClient) Recording(ctx context.Context, name string) (models.AudioContribution, bool) {
	if name == "" {
		return models.AudioContribution{}, false
	}

	params := url.Values{}
	params.Set("query", name+" q:A")

	var data xenoCantoResponse
	if !c.FetchJSON(ctx, c.baseURL+"?"+params.Encode(), &data) {
		return models.AudioContribution{}, false
	}
	if len(data.Recordings) == 0 || data.Recordings[0].File == "" {
		return models.AudioContribution{}, false
	}

	first := data.Recordings[0]
	return models.AudioContribution{URL: first.File, Author: first.Rec}, true
}
