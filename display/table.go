// Package display renders recommendations as a console table.
package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cine-match/recommender"
)

const (
	titleWidth   = 30
	typeWidth    = 10
	runtimeWidth = 8
	countryWidth = 10
	genresWidth  = 20
	scoreWidth   = 10
)

// PrintBatch writes a table of the batch headed "Recommended <Type>s".
func PrintBatch(w io.Writer, batch *recommender.Batch, userType string) {
	if batch.Empty() {
		fmt.Fprintln(w, "No recommendations to display.")
		return
	}

	heading := fmt.Sprintf("Recommended %ss", cases.Title(language.English).String(userType))
	fmt.Fprintf(w, "\n%s\n%s\n", heading, strings.Repeat("=", utf8.RuneCountInString(heading)))

	header := strings.Join([]string{
		center("Title", titleWidth),
		center("Type", typeWidth),
		center("Runtime", runtimeWidth),
		center("Country", countryWidth),
		center("Genres", genresWidth),
		center("IMDB Score", scoreWidth),
	}, " | ")
	sep := strings.Repeat("-", utf8.RuneCountInString(header))

	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, sep)
	for _, it := range batch.Items {
		score := "N/A"
		if it.IMDBScore != nil {
			score = formatNumber(*it.IMDBScore)
		}
		fmt.Fprintln(w, strings.Join([]string{
			left(Truncate(it.Title, titleWidth), titleWidth),
			center(it.Type, typeWidth),
			center(formatNumber(it.Runtime), runtimeWidth),
			center(strings.Join(it.ProductionCountries, ", "), countryWidth),
			left(strings.Join(it.Genres, ", "), genresWidth),
			center(score, scoreWidth),
		}, " | "))
	}
	fmt.Fprintln(w, sep)
}

// Truncate shortens s to width runes, ending with "..." when cut.
func Truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-3]) + "..."
}

// center pads s on both sides; an odd remainder goes to the right.
func center(s string, width int) string {
	pad := width - utf8.RuneCountInString(s)
	if pad <= 0 {
		return s
	}
	l := pad / 2
	return strings.Repeat(" ", l) + s + strings.Repeat(" ", pad-l)
}

func left(s string, width int) string {
	pad := width - utf8.RuneCountInString(s)
	if pad <= 0 {
		return s
	}
	return s + strings.Repeat(" ", pad)
}

// formatNumber keeps one decimal for whole numbers, so 118 prints as "118.0".
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
