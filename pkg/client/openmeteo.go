package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bobby-s-dev/species-archive/internal/models"
	"go.uber.org/zap"
)

type OpenMeteoClient struct {
	*BaseClient
	baseURL string
}

type OpenMeteoCurrentResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   *struct {
		Time          string   `json:"time"`
		Interval      int      `json:"interval"`
		Temperature2M *float64 `json:"temperature_2m"`
		WeatherCode   int      `json:"weather_code"`
		IsDay         int      `json:"is_day"`
	} `json:"current"`
}

func NewOpenMeteoClient(baseURL string, config ClientConfig, logger *zap.Logger) *OpenMeteoClient {
	baseClient := NewBaseClient("openmeteo", config, logger)
	return &OpenMeteoClient{
		BaseClient: baseClient,
		baseURL:    baseURL,
	}
}

// CurrentConditions returns the live weather at a coordinate, labelled with
// the location name of the observation it came from.
func (c *OpenMeteoClient) CurrentConditions(ctx context.Context, lat, lng float64, label string) (*models.WeatherSnapshot, bool) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	params.Set("current", "temperature_2m,weather_code,is_day")
	params.Set("timezone", "auto")

	var response OpenMeteoCurrentResponse
	if !c.FetchJSON(ctx, fmt.Sprintf("%s/forecast?%s", c.baseURL, params.Encode()), &response) {
		return nil, false
	}
	if response.Current == nil || response.Current.Temperature2M == nil {
		return nil, false
	}

	return &models.WeatherSnapshot{
		Temp:          *response.Current.Temperature2M,
		ConditionCode: response.Current.WeatherCode,
		Condition:     DescribeWeatherCode(response.Current.WeatherCode),
		IsDay:         response.Current.IsDay == 1,
		Location:      label,
		Lat:           lat,
		Lng:           lng,
	}, true
}

// DescribeWeatherCode buckets WMO weather interpretation codes into a short
// human label.
func DescribeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code >= 1 && code <= 3:
		return "Cloudy"
	case code >= 45 && code <= 48:
		return "Foggy"
	case code >= 51 && code <= 67:
		return "Rainy"
	case code >= 71 && code <= 86:
		return "Snowy"
	case code >= 95:
		return "Stormy"
	default:
		return "Variable"
	}
}
