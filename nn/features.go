package nn

import (
	"fmt"
	"math"
	"strings"

	"cine-match/catalog"
	"cine-match/preferences"
	"cine-match/preprocess"
)

const (
	fieldType = iota
	fieldGenres
	fieldCountries
	fieldAge
	numFields
)

// Input is one encoded example: label ids for the categorical fields and the
// standard-scaled runtime.
type Input struct {
	Type      int     `json:"type"`
	Genres    int     `json:"genres"`
	Countries int     `json:"production_countries"`
	Age       int     `json:"age_certification"`
	Runtime   float64 `json:"runtime"`
}

func (in Input) ids() [numFields]int {
	return [numFields]int{in.Type, in.Genres, in.Countries, in.Age}
}

// Row is an encoded catalog row. The row position is its class id.
type Row struct {
	Title string `json:"title"`
	Input
}

// Encoders holds the fitted label encoders and runtime scaler.
type Encoders struct {
	Type      *preprocess.LabelEncoder  `json:"type"`
	Genres    *preprocess.LabelEncoder  `json:"genres"`
	Countries *preprocess.LabelEncoder  `json:"production_countries"`
	Age       *preprocess.LabelEncoder  `json:"age_certification"`
	Runtime   preprocess.StandardScaler `json:"runtime"`
}

// Decoded is a catalog row mapped back to its original values.
type Decoded struct {
	Title               string
	Type                string
	Genres              string
	ProductionCountries string
	Runtime             float64
	AgeCertification    string
}

// FitEncoders fits the encoders on titles and returns the encoded rows. List
// columns are joined with "," and a missing age certification becomes
// "Unknown". A missing runtime is encoded as the mean.
func FitEncoders(titles []catalog.Title) (*Encoders, []Row) {
	n := len(titles)
	types := make([]string, n)
	genres := make([]string, n)
	countries := make([]string, n)
	ages := make([]string, n)
	runtimes := make([]float64, n)

	for i, t := range titles {
		types[i] = t.Type
		genres[i] = strings.Join(t.Genres, ",")
		countries[i] = strings.Join(t.ProductionCountries, ",")
		ages[i] = t.Certification()
		runtimes[i] = math.NaN()
		if t.Runtime != nil {
			runtimes[i] = *t.Runtime
		}
	}

	enc := &Encoders{
		Type:      preprocess.NewLabelEncoder("type"),
		Genres:    preprocess.NewLabelEncoder("genres"),
		Countries: preprocess.NewLabelEncoder("production_countries"),
		Age:       preprocess.NewLabelEncoder("age_certification"),
	}
	typeIDs := enc.Type.FitTransform(types)
	genreIDs := enc.Genres.FitTransform(genres)
	countryIDs := enc.Countries.FitTransform(countries)
	ageIDs := enc.Age.FitTransform(ages)
	scaled := enc.Runtime.FitTransform(runtimes)

	rows := make([]Row, n)
	for i, t := range titles {
		r := scaled[i]
		if math.IsNaN(r) {
			r = 0
		}
		rows[i] = Row{
			Title: t.Title,
			Input: Input{
				Type:      typeIDs[i],
				Genres:    genreIDs[i],
				Countries: countryIDs[i],
				Age:       ageIDs[i],
				Runtime:   r,
			},
		}
	}
	return enc, rows
}

func (e *Encoders) vocab() [numFields]int {
	return [numFields]int{e.Type.Len(), e.Genres.Len(), e.Countries.Len(), e.Age.Len()}
}

// Encode maps preferences onto model input. Unseen labels fall back to id 0.
func (e *Encoders) Encode(p preferences.Preferences) Input {
	return Input{
		Type:      e.Type.TransformOrDefault(p.Type),
		Genres:    e.Genres.TransformOrDefault(strings.Join(p.GenreList(), ",")),
		Countries: e.Countries.TransformOrDefault(p.ProductionCountries),
		Age:       e.Age.TransformOrDefault(p.AgeCertification),
		Runtime:   e.Runtime.Transform(float64(p.Runtime)),
	}
}

// Decode maps an encoded row back to catalog values.
func (e *Encoders) Decode(r Row) (Decoded, error) {
	d := Decoded{Title: r.Title, Runtime: e.Runtime.InverseTransform(r.Runtime)}

	fields := []struct {
		enc *preprocess.LabelEncoder
		id  int
		dst *string
	}{
		{e.Type, r.Type, &d.Type},
		{e.Genres, r.Genres, &d.Genres},
		{e.Countries, r.Countries, &d.ProductionCountries},
		{e.Age, r.Age, &d.AgeCertification},
	}
	for _, f := range fields {
		v, err := f.enc.InverseTransform(f.id)
		if err != nil {
			return Decoded{}, fmt.Errorf("failed to decode %q: %w", r.Title, err)
		}
		*f.dst = v
	}
	return d, nil
}
