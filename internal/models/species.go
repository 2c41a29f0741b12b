package models

import (
	"time"
)

// Narrative holds the free-text sections written by the generative source.
// Each field is opaque display text.
type Narrative struct {
	FirstNamedBy       string `json:"firstNamedBy,omitempty"`
	Etymology          string `json:"etymology,omitempty"`
	AncestralHome      string `json:"ancestralHome,omitempty"`
	NativeRange        string `json:"nativeRange,omitempty"`
	Relatives          string `json:"relatives,omitempty"`
	Size               string `json:"size,omitempty"`
	RecordSizeWeight   string `json:"recordSizeWeight,omitempty"`
	Colors             string `json:"colors,omitempty"`
	Movement           string `json:"movement,omitempty"`
	Reproduction       string `json:"reproduction,omitempty"`
	Lifespan           string `json:"lifespan,omitempty"`
	LongestLife        string `json:"longestLife,omitempty"`
	Diet               string `json:"diet,omitempty"`
	Defense            string `json:"defense,omitempty"`
	Toxin              string `json:"toxin,omitempty"`
	Symbiotic          string `json:"symbiotic,omitempty"`
	Migration          string `json:"migration,omitempty"`
	Sleep              string `json:"sleep,omitempty"`
	Scent              string `json:"scent,omitempty"`
	Sound              string `json:"sound,omitempty"`
	History            string `json:"history,omitempty"`
	Myths              string `json:"myths,omitempty"`
	Culture            string `json:"culture,omitempty"`
	Threats            string `json:"threats,omitempty"`
	ConservationStatus string `json:"conservationStatus,omitempty"`
	SuccessStories     string `json:"successStories,omitempty"`
	UnknownFact        string `json:"unknownFact,omitempty"`
	RecordFact         string `json:"recordFact,omitempty"`
	WildStatus         string `json:"wildStatus,omitempty"`
	Description        string `json:"description,omitempty"`
}

// Enrichment is everything merged in from the public data sources.
// Every field is optional; an empty field means the source had nothing.
type Enrichment struct {
	ImageURL         string           `json:"imageUrl,omitempty"`
	SourceURL        string           `json:"sourceUrl,omitempty"`
	Observations     []Observation    `json:"observations,omitempty"`
	GalleryImages    []string         `json:"galleryImages,omitempty"`
	SeasonalActivity map[int]int      `json:"seasonalActivity,omitempty"`
	AudioURL         string           `json:"audioUrl,omitempty"`
	AudioAuthor      string           `json:"audioAuthor,omitempty"`
	WeatherData      *WeatherSnapshot `json:"weatherData,omitempty"`
}

type SpeciesRecord struct {
	CommonName     string `json:"commonName"`
	ScientificName string `json:"scientificName"`
	Kingdom        string `json:"kingdom"`
	Family         string `json:"family"`

	Narrative
	Enrichment
}

// DisplayName prefers the scientific name, which is also what every
// enrichment source is queried with.
func (r *SpeciesRecord) DisplayName() string {
	if r.ScientificName != "" {
		return r.ScientificName
	}
	return r.CommonName
}

func (r *SpeciesRecord) HasIdentity() bool {
	return r.CommonName != "" || r.ScientificName != ""
}

// Clone returns a deep copy so cached records never share slices or maps
// with the caller.
func (r *SpeciesRecord) Clone() *SpeciesRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Observations != nil {
		c.Observations = make([]Observation, len(r.Observations))
		for i, o := range r.Observations {
			c.Observations[i] = o.clone()
		}
	}
	if r.GalleryImages != nil {
		c.GalleryImages = append([]string(nil), r.GalleryImages...)
	}
	if r.SeasonalActivity != nil {
		c.SeasonalActivity = make(map[int]int, len(r.SeasonalActivity))
		for k, v := range r.SeasonalActivity {
			c.SeasonalActivity[k] = v
		}
	}
	if r.WeatherData != nil {
		w := *r.WeatherData
		c.WeatherData = &w
	}
	return &c
}

type BasisOfRecord string

const (
	BasisFieldSighted    BasisOfRecord = "HUMAN_OBSERVATION"
	BasisMuseumSpecimen  BasisOfRecord = "PRESERVED_SPECIMEN"
	BasisAutomatedSensor BasisOfRecord = "MACHINE_OBSERVATION"
	BasisFossil          BasisOfRecord = "FOSSIL_SPECIMEN"
	BasisUnspecified     BasisOfRecord = ""
)

var basisLabels = map[BasisOfRecord]string{
	BasisFieldSighted:    "Sighted in wild",
	BasisMuseumSpecimen:  "Museum Specimen",
	BasisAutomatedSensor: "Automated sensor",
	BasisFossil:          "Fossil",
}

// ParseBasisOfRecord maps any unknown source value to BasisUnspecified.
func ParseBasisOfRecord(raw string) BasisOfRecord {
	b := BasisOfRecord(raw)
	if _, ok := basisLabels[b]; ok {
		return b
	}
	return BasisUnspecified
}

func (b BasisOfRecord) Label() string {
	if label, ok := basisLabels[b]; ok {
		return label
	}
	return "Observation"
}

type Observation struct {
	Country       string   `json:"country"`
	Date          string   `json:"date"`
	BasisOfRecord string   `json:"basisOfRecord"`
	RecordedBy    string   `json:"recordedBy"`
	Locality      string   `json:"locality,omitempty"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
}

func (o Observation) HasCoordinates() bool {
	return o.Lat != nil && o.Lng != nil
}

// LocationLabel is the name shown next to the weather snapshot.
func (o Observation) LocationLabel() string {
	if o.Locality != "" {
		return o.Locality
	}
	return o.Country
}

func (o Observation) clone() Observation {
	c := o
	if o.Lat != nil {
		lat := *o.Lat
		c.Lat = &lat
	}
	if o.Lng != nil {
		lng := *o.Lng
		c.Lng = &lng
	}
	return c
}

type WeatherSnapshot struct {
	Temp          float64 `json:"temp"`
	ConditionCode int     `json:"conditionCode"`
	Condition     string  `json:"condition"`
	IsDay         bool    `json:"isDay"`
	Location      string  `json:"location"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
}

type RelatedSpeciesStub struct {
	CommonName     string `json:"commonName"`
	ScientificName string `json:"scientificName"`
	ImageURL       string `json:"imageUrl,omitempty"`
}

// LookupName is the name used for the thumbnail search.
func (s RelatedSpeciesStub) LookupName() string {
	if s.ScientificName != "" {
		return s.ScientificName
	}
	return s.CommonName
}

// Contributions returned by the individual source adapters.

type CommunityContribution struct {
	Images      []string
	HeroImage   string
	Seasonality map[int]int
}

type AudioContribution struct {
	URL    string
	Author string
}

type PageImage struct {
	ImageURL  string
	SourceURL string
}

type HistoryEntry struct {
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
}
