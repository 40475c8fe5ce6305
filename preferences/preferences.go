// Package preferences turns keyword answers from the preference API into a
// structured preference record.
package preferences

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const (
	DefaultType             = "MOVIE"
	DefaultGenre            = "action"
	DefaultCountry          = "US"
	DefaultRuntime          = 120
	DefaultAgeCertification = "PG-13"

	// MinAnswers is the number of answers needed before any rule applies.
	MinAnswers = 5
)

var digitRun = regexp.MustCompile(`(\d+)`)

// Answer is one answered question with the keywords extracted from it.
type Answer struct {
	Question string   `json:"question"`
	Keywords []string `json:"keywords"`
}

// Preferences is the structured preference record the rankers consume.
type Preferences struct {
	Type                string `json:"type"`
	Genres              string `json:"genres"`
	ProductionCountries string `json:"production_countries"`
	Runtime             int    `json:"runtime"`
	AgeCertification    string `json:"age_certification"`
}

// GenreList splits Genres on commas and trims each entry.
func (p Preferences) GenreList() []string {
	parts := strings.Split(p.Genres, ",")
	out := make([]string, len(parts))
	for i, g := range parts {
		out[i] = strings.TrimSpace(g)
	}
	return out
}

// Transform maps answers to preferences. Answers are positional: 1 is the title
// type, 3 the genres, 4 the industry and 5 the runtime. Fewer than MinAnswers
// answers yield the defaults.
func Transform(answers []Answer) Preferences {
	p := Preferences{
		Type:             DefaultType,
		Runtime:          DefaultRuntime,
		AgeCertification: DefaultAgeCertification,
	}

	if len(answers) >= MinAnswers {
		switch {
		case hasKeyword(answers[0].Keywords, "[movie]"):
			p.Type = "MOVIE"
		case hasKeyword(answers[0].Keywords, "[show]"):
			p.Type = "SHOW"
		}

		genres := make([]string, len(answers[2].Keywords))
		for i, k := range answers[2].Keywords {
			genres[i] = strings.ToLower(strings.Trim(k, "[]"))
		}
		p.Genres = strings.Join(genres, ", ")

		switch {
		case hasKeyword(answers[3].Keywords, "[hollywood]"):
			p.ProductionCountries = "US"
		case hasKeyword(answers[3].Keywords, "[bollywood]"):
			p.ProductionCountries = "IN"
		}

		p.Runtime = runtimeFrom(answers[4].Keywords)
	}

	p.Genres = strings.TrimSpace(p.Genres)
	if p.Genres == "" {
		p.Genres = DefaultGenre
	}
	p.ProductionCountries = strings.TrimSpace(p.ProductionCountries)
	if p.ProductionCountries == "" {
		p.ProductionCountries = DefaultCountry
	}
	return p
}

func hasKeyword(keywords []string, want string) bool {
	for _, k := range keywords {
		if strings.ToLower(k) == want {
			return true
		}
	}
	return false
}

func runtimeFrom(keywords []string) int {
	for _, k := range keywords {
		m := digitRun.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			// Overflowing digit runs are not a runtime.
			return DefaultRuntime
		}
		return n
	}
	return DefaultRuntime
}

// Fingerprint returns a stable hex digest of answers, used to recognise an
// answer set that was already served.
func Fingerprint(answers []Answer) string {
	data, err := json.Marshal(answers)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
