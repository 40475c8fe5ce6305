package catalog

import (
	"bytes"
	"fmt"
	"strings"

	"cine-match/logging"
	"cine-match/scraper"
)

// Open loads the catalog from a local path, or downloads it with fetcher when
// location is an http(s) URL.
func Open(location string, fetcher scraper.FetcherInterface) ([]Title, error) {
	if !isRemote(location) {
		return Load(location)
	}

	if fetcher == nil {
		fetcher = scraper.NewFetcher()
	}

	logging.Info().Str("url", location).Msg("Downloading catalog")
	body, err := fetcher.Fetch(location)
	if err != nil {
		return nil, fmt.Errorf("failed to download catalog: %w", err)
	}

	titles, err := Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", location, err)
	}
	return titles, nil
}

func isRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
