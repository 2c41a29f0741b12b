package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func muxServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

const gbifOccurrences = `{"results":[
	{"country":"Norway","eventDate":"2023-06-14T10:00:00","basisOfRecord":"HUMAN_OBSERVATION","recordedBy":"Kari","locality":"Tromsø","decimalLatitude":69.6,"decimalLongitude":18.9},
	{"eventDate":"2021-03/2021-04","basisOfRecord":"PRESERVED_SPECIMEN","stateProvince":"Ontario"},
	{"country":"Chile","eventDate":"","basisOfRecord":"SOMETHING_NEW"}
]}`

const gbifMedia = `{"results":[
	{"media":[{"type":"StillImage","identifier":"https://img/1.jpg"},{"type":"Sound","identifier":"https://snd/1.mp3"}]},
	{"media":[{"type":"StillImage","identifier":"https://img/1.jpg"},{"type":"StillImage","identifier":"https://img/2.jpg"}]}
]}`

func TestGBIF_RecentObservations(t *testing.T) {
	var gotQuery map[string]string
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/species/match": respond(`{"usageKey":5219243,"matchType":"EXACT"}`),
		"/occurrence/search": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			gotQuery = map[string]string{
				"taxonKey":      q.Get("taxonKey"),
				"limit":         q.Get("limit"),
				"hasCoordinate": q.Get("hasCoordinate"),
				"year":          q.Get("year"),
			}
			respond(gbifOccurrences)(w, r)
		},
	})

	c := NewGBIFClient(srv.URL, testConfig(), zap.NewNop())
	c.now = func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) }

	obs, ok := c.RecentObservations(context.Background(), "Vulpes vulpes")
	require.True(t, ok)
	require.Len(t, obs, 3)

	assert.Equal(t, map[string]string{
		"taxonKey":      "5219243",
		"limit":         "4",
		"hasCoordinate": "true",
		"year":          "2020,2025",
	}, gotQuery)

	assert.Equal(t, "Norway", obs[0].Country)
	assert.Equal(t, "Jun 14, 2023", obs[0].Date)
	assert.Equal(t, "Sighted in wild", obs[0].BasisOfRecord)
	assert.Equal(t, "Kari", obs[0].RecordedBy)
	require.True(t, obs[0].HasCoordinates())
	assert.Equal(t, 69.6, *obs[0].Lat)

	assert.Equal(t, "International Waters", obs[1].Country)
	assert.Equal(t, "Mar 1, 2021", obs[1].Date)
	assert.Equal(t, "Museum Specimen", obs[1].BasisOfRecord)
	assert.Equal(t, "Anonymous", obs[1].RecordedBy)
	assert.Equal(t, "Ontario", obs[1].Locality)
	assert.False(t, obs[1].HasCoordinates())

	assert.Equal(t, "Unknown Date", obs[2].Date)
	assert.Equal(t, "Observation", obs[2].BasisOfRecord)
}

func TestGBIF_NoMatch(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/species/match": respond(`{"matchType":"NONE"}`),
		"/occurrence/search": func(w http.ResponseWriter, r *http.Request) {
			t.Error("occurrence search must not run without a taxon key")
		},
	})

	c := NewGBIFClient(srv.URL, testConfig(), zap.NewNop())

	_, ok := c.RecentObservations(context.Background(), "Nonexistus fakeus")
	assert.False(t, ok)
	_, ok = c.GalleryImages(context.Background(), "Nonexistus fakeus")
	assert.False(t, ok)
}

func TestGBIF_GalleryImages(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/species/match": respond(`{"usageKey":1,"matchType":"FUZZY"}`),
		"/occurrence/search": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "StillImage", r.URL.Query().Get("mediaType"))
			respond(gbifMedia)(w, r)
		},
	})

	c := NewGBIFClient(srv.URL, testConfig(), zap.NewNop())

	images, ok := c.GalleryImages(context.Background(), "Vulpes vulpes")
	require.True(t, ok)
	assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.jpg"}, images)
}

func TestINaturalist_Community(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/taxa": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "species", r.URL.Query().Get("rank"))
			respond(`{"results":[{"id":42069}]}`)(w, r)
		},
		"/observations": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "42069", r.URL.Query().Get("taxon_id"))
			assert.Equal(t, "research", r.URL.Query().Get("quality_grade"))
			respond(`{"results":[
				{"photos":[{"url":"https://static.inat/photos/1/square.jpg"}]},
				{"photos":[]},
				{"photos":[{"url":"https://static.inat/photos/2/square.jpg"}]}
			]}`)(w, r)
		},
		"/observations/histogram": respond(`{"results":{"month_of_year":{"1":3,"6":40,"13":9,"x":1}}}`),
	})

	c := NewINaturalistClient(srv.URL, testConfig(), zap.NewNop())

	contribution, ok := c.Community(context.Background(), "Vulpes vulpes")
	require.True(t, ok)
	assert.Equal(t, []string{
		"https://static.inat/photos/1/medium.jpg",
		"https://static.inat/photos/2/medium.jpg",
	}, contribution.Images)
	assert.Equal(t, "https://static.inat/photos/1/large.jpg", contribution.HeroImage)
	assert.Equal(t, map[int]int{1: 3, 6: 40}, contribution.Seasonality)
}

func TestINaturalist_HistogramOnly(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/taxa":                   respond(`{"results":[{"id":7}]}`),
		"/observations":           respond(`{"results":[]}`),
		"/observations/histogram": respond(`{"results":{"month_of_year":{"4":2}}}`),
	})

	c := NewINaturalistClient(srv.URL, testConfig(), zap.NewNop())

	contribution, ok := c.Community(context.Background(), "Quercus robur")
	require.True(t, ok)
	assert.Empty(t, contribution.Images)
	assert.Empty(t, contribution.HeroImage)
	assert.Equal(t, map[int]int{4: 2}, contribution.Seasonality)
}

func TestINaturalist_UnknownTaxon(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/taxa": respond(`{"results":[]}`),
	})

	c := NewINaturalistClient(srv.URL, testConfig(), zap.NewNop())

	_, ok := c.Community(context.Background(), "Nonexistus")
	assert.False(t, ok)
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t, "https://www.inaturalist.org/search?q=Vulpes+vulpes", SearchURL("Vulpes vulpes"))
}

func TestXenoCanto_Recording(t *testing.T) {
	var gotQuery string
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/recordings": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("query")
			respond(`{"recordings":[{"file":"https://xeno-canto.org/1234/download","rec":"Jan Jansen"},{"file":"https://other"}]}`)(w, r)
		},
	})

	c := NewXenoCantoClient(srv.URL+"/recordings", testConfig(), zap.NewNop())

	rec, ok := c.Recording(context.Background(), "Turdus merula")
	require.True(t, ok)
	assert.Equal(t, "Turdus merula q:A", gotQuery)
	assert.Equal(t, "https://xeno-canto.org/1234/download", rec.URL)
	assert.Equal(t, "Jan Jansen", rec.Author)
}

func TestXenoCanto_NoRecordings(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/recordings": respond(`{"numRecordings":"0","recordings":[]}`),
	})

	c := NewXenoCantoClient(srv.URL+"/recordings", testConfig(), zap.NewNop())

	_, ok := c.Recording(context.Background(), "Danaus plexippus")
	assert.False(t, ok)
}

func TestWikipedia_PageImage(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/w/api.php": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			switch {
			case q.Get("list") == "search":
				respond(`{"query":{"search":[{"title":"Red fox"}]}}`)(w, r)
			case q.Get("titles") == "Red fox":
				respond(`{"query":{"pages":{"-1":{"missing":""},"123":{"pageid":123,"fullurl":"https://en.wikipedia.org/wiki/Red_fox","thumbnail":{"source":"https://upload/thumb.jpg"},"original":{"source":"https://upload/orig.jpg"}}}}}`)(w, r)
			default:
				http.NotFound(w, r)
			}
		},
	})

	c := NewWikipediaClient(srv.URL+"/w/api.php", testConfig(), zap.NewNop())

	page, ok := c.PageImage(context.Background(), "Vulpes vulpes")
	require.True(t, ok)
	assert.Equal(t, "https://upload/orig.jpg", page.ImageURL)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Red_fox", page.SourceURL)
}

func TestWikipedia_NoSearchHits(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/w/api.php": respond(`{"query":{"search":[]}}`),
	})

	c := NewWikipediaClient(srv.URL+"/w/api.php", testConfig(), zap.NewNop())

	_, ok := c.PageImage(context.Background(), "qwertyuiop")
	assert.False(t, ok)
}

func TestWikipedia_Suggestions(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/w/api.php": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "opensearch", r.URL.Query().Get("action"))
			respond(`["red",["Red","Red fox","Red panda","Red kite","Red deer","Red squirrel"],[],[]]`)(w, r)
		},
	})

	c := NewWikipediaClient(srv.URL+"/w/api.php", testConfig(), zap.NewNop())

	titles, ok := c.Suggestions(context.Background(), "red")
	require.True(t, ok)
	assert.Equal(t, []string{"Red", "Red fox", "Red panda", "Red kite", "Red deer"}, titles)
}

func TestOpenMeteo_CurrentConditions(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/v1/forecast": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "69.6", q.Get("latitude"))
			assert.Equal(t, "18.9", q.Get("longitude"))
			assert.Equal(t, "temperature_2m,weather_code,is_day", q.Get("current"))
			respond(`{"latitude":69.6,"longitude":18.9,"current":{"time":"2025-05-01T12:00","interval":900,"temperature_2m":4.2,"weather_code":61,"is_day":1}}`)(w, r)
		},
	})

	c := NewOpenMeteoClient(srv.URL+"/v1", testConfig(), zap.NewNop())

	snapshot, ok := c.CurrentConditions(context.Background(), 69.6, 18.9, "Tromsø")
	require.True(t, ok)
	assert.Equal(t, 4.2, snapshot.Temp)
	assert.Equal(t, 61, snapshot.ConditionCode)
	assert.Equal(t, "Rainy", snapshot.Condition)
	assert.True(t, snapshot.IsDay)
	assert.Equal(t, "Tromsø", snapshot.Location)
}

func TestOpenMeteo_MissingCurrent(t *testing.T) {
	srv := muxServer(t, map[string]http.HandlerFunc{
		"/v1/forecast": respond(`{"latitude":0,"longitude":0}`),
	})

	c := NewOpenMeteoClient(srv.URL+"/v1", testConfig(), zap.NewNop())

	_, ok := c.CurrentConditions(context.Background(), 0, 0, "")
	assert.False(t, ok)
}

func TestDescribeWeatherCode(t *testing.T) {
	tests := map[int]string{
		0:  "Clear sky",
		2:  "Cloudy",
		45: "Foggy",
		55: "Rainy",
		73: "Snowy",
		95: "Stormy",
		99: "Stormy",
		30: "Variable",
	}
	for code, want := range tests {
		assert.Equal(t, want, DescribeWeatherCode(code), "code %d", code)
	}
}
