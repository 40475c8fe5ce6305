// Package catalog loads the titles dataset the recommenders rank.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	TypeMovie = "MOVIE"
	TypeShow  = "SHOW"

	// UnknownCertification replaces a missing age certification.
	UnknownCertification = "Unknown"
)

// Title is one catalog row. Pointer fields are nil when the cell was empty.
type Title struct {
	ID                  string
	Title               string
	Type                string
	Description         string
	ReleaseYear         *int
	AgeCertification    string
	Runtime             *float64
	Genres              []string
	ProductionCountries []string
	Seasons             *float64
	IMDBID              string
	IMDBScore           *float64
	IMDBVotes           *float64
	TMDBPopularity      *float64
	TMDBScore           *float64
}

// HasCountry reports whether country is one of the title's production countries.
func (t Title) HasCountry(country string) bool {
	for _, c := range t.ProductionCountries {
		if c == country {
			return true
		}
	}
	return false
}

// Certification returns the age certification or UnknownCertification.
func (t Title) Certification() string {
	if t.AgeCertification == "" {
		return UnknownCertification
	}
	return t.AgeCertification
}

var requiredColumns = []string{"id", "title", "type"}

// Load reads a catalog CSV file from disk.
func Load(path string) ([]Title, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	titles, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return titles, nil
}

// Parse reads catalog rows from CSV. Columns are matched by header name.
func Parse(r io.Reader) ([]Title, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty catalog")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var titles []Title
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		t, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		titles = append(titles, t)
	}

	return titles, nil
}

func parseRecord(record []string, cols map[string]int) (Title, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	t := Title{
		ID:               get("id"),
		Title:            get("title"),
		Type:             get("type"),
		Description:      get("description"),
		AgeCertification: get("age_certification"),
		IMDBID:           get("imdb_id"),
	}

	var err error
	if t.Genres, err = ParseListLiteral(get("genres")); err != nil {
		return Title{}, fmt.Errorf("genres: %w", err)
	}
	if t.ProductionCountries, err = ParseListLiteral(get("production_countries")); err != nil {
		return Title{}, fmt.Errorf("production_countries: %w", err)
	}

	floats := []struct {
		name string
		dst  **float64
	}{
		{"runtime", &t.Runtime},
		{"seasons", &t.Seasons},
		{"imdb_score", &t.IMDBScore},
		{"imdb_votes", &t.IMDBVotes},
		{"tmdb_popularity", &t.TMDBPopularity},
		{"tmdb_score", &t.TMDBScore},
	}
	for _, f := range floats {
		v, err := parseOptionalFloat(get(f.name))
		if err != nil {
			return Title{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	if year := get("release_year"); year != "" {
		y, err := strconv.ParseFloat(year, 64)
		if err != nil {
			return Title{}, fmt.Errorf("release_year: %w", err)
		}
		iy := int(y)
		t.ReleaseYear = &iy
	}

	return t, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ForSimilarity keeps rows usable for content scoring: description, imdb score and
// runtime present, first occurrence of each id only.
func ForSimilarity(titles []Title) []Title {
	seen := make(map[string]struct{}, len(titles))
	out := make([]Title, 0, len(titles))
	for _, t := range titles {
		if t.Description == "" || t.IMDBScore == nil || t.Runtime == nil {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
