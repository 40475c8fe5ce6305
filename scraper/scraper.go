package scraper

import (
	"fmt"
	"time"

	"cine-match/logging"

	"github.com/gocolly/colly"
)

// FetcherInterface downloads a remote resource, e.g. a catalog CSV.
type FetcherInterface interface {
	Fetch(url string) ([]byte, error)
}

type Fetcher struct {
	timeout     time.Duration
	maxBodySize int
}

func (f *Fetcher) Fetch(url string) ([]byte, error) {
	c := colly.NewCollector(
		colly.MaxBodySize(f.maxBodySize),
		colly.UserAgent("cine-match/1.0"),
	)
	c.SetRequestTimeout(f.timeout)

	var body []byte
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		logging.Debug().Str("url", r.URL.String()).Msg("Fetching")
	})

	c.OnResponse(func(r *colly.Response) {
		logging.Debug().Int("status", r.StatusCode).Int("bytes", len(r.Body)).Msg("Response received")
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = fmt.Errorf("failed to fetch %s (status %d): %w", url, status, err)
	})

	if err := c.Visit(url); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("failed to visit %s: %w", url, err)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return body, nil
}

func NewFetcher() FetcherInterface {
	return &Fetcher{
		timeout:     60 * time.Second,
		maxBodySize: 64 << 20,
	}
}
