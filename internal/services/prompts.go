package services

import (
	"encoding/json"
	"fmt"
)

var speciesSchema = map[string]string{
	"commonName":         "String",
	"scientificName":     "String",
	"kingdom":            "String ('Animalia', 'Plantae', or 'Fungi')",
	"family":             "String",
	"firstNamedBy":       "String (Year & Scientist)",
	"etymology":          "String (Origin of name)",
	"ancestralHome":      "String",
	"nativeRange":        "String",
	"relatives":          "String",
	"size":               "String",
	"recordSizeWeight":   "String",
	"colors":             "String",
	"movement":           "String",
	"reproduction":       "String",
	"lifespan":           "String",
	"longestLife":        "String",
	"diet":               "String",
	"defense":            "String",
	"toxin":              "String",
	"symbiotic":          "String",
	"migration":          "String",
	"sleep":              "String",
	"scent":              "String",
	"sound":              "String",
	"history":            "String",
	"myths":              "String",
	"culture":            "String",
	"threats":            "String",
	"conservationStatus": "String",
	"successStories":     "String",
	"unknownFact":        "String",
	"recordFact":         "String",
	"wildStatus":         "String",
	"description":        "String (Summary)",
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

var speciesInstruction = fmt.Sprintf(`You are a biological encyclopedia.
Return a strict JSON object matching this schema: %s.
The JSON must be valid, contain no comments, and escape every string properly.
Tone: quiet, educational, slightly poetic nature writing.`, mustJSON(speciesSchema))

func speciesPrompt(query string) string {
	return fmt.Sprintf(`Generate a detailed entry for: %q.
If the query is a generic habitat (e.g. "Forest"), choose a representative organism.
RETURN ONLY JSON.`, query)
}

func imagePrompt(commonName, scientificName string) string {
	return fmt.Sprintf("A photorealistic, highly detailed nature photograph of %s (%s) in its natural habitat. "+
		"Cinematic lighting, 8k resolution, documentary wildlife style.", commonName, scientificName)
}

func suggestionPrompt(query string) string {
	return fmt.Sprintf(`A user searched a nature archive for %q and nothing was found. `+
		`Reply with ONE corrected species name and nothing else. If the query is unrelated to nature, reply with null.`, query)
}

const stubItemSchema = `{ "commonName": "...", "scientificName": "..." }`

const listInstruction = `You list species for a nature archive.
Return a JSON object with a key 'items' holding an array of ` + stubItemSchema + ` objects.
Use double quotes for every property name and string value. No trailing commas.`

func relatedPrompt(name, family string) string {
	return fmt.Sprintf(`List %d species related to %q (Family: %s).`, relatedLimit, name, family)
}

func letterPrompt(letter string) string {
	return fmt.Sprintf(`List %d interesting species whose common name starts with the letter %q.`, letterLimit, letter)
}

const featuredInstruction = `You are a nature curator. Generate unique, fascinating nature entries.
Return a valid JSON object with a key 'items' holding an array of objects.
Schema: { "commonName": "String", "scientificName": "String", "kingdom": "String", "description": "String", "unknownFact": "String" }
Use double quotes for every property name and string value. Escape double quotes inside strings. No trailing commas.`

func featuredPrompt() string {
	return fmt.Sprintf("Generate %d featured species.", featuredLimit)
}
