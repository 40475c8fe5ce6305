package textvec

import (
	_ "embed"
	"strings"
)

//go:embed stopwords.txt
var stopWordsText string

// EnglishStopWords is the English stop-word list applied by default.
var EnglishStopWords = func() map[string]struct{} {
	words := strings.Fields(stopWordsText)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()
