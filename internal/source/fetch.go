// Package source acquires raw schedule data: the monthly EUC-JP HTML
// schedule pages published by the dojo site, plus optional upstream
// iCalendar exports. It produces loosely-typed records; all validation
// happens at the icsfeed boundary.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// fetchParallelism bounds how many month pages are fetched at once.
const fetchParallelism = 16

// Client fetches monthly schedule pages.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	Username   string
	Password   string

	// Location is the zone timed schedule entries are anchored in.
	Location *time.Location

	Logger *slog.Logger
}

// PageURL returns the address of one monthly schedule page.
func (c *Client) PageURL(year int, month time.Month) string {
	base := strings.TrimSuffix(c.BaseURL, "/")
	return fmt.Sprintf("%s/%04d/%04d%02d.html", base, year, year, month)
}

// Month fetches and parses a single month. Fetch and parse failures are
// collected into the result; a broken month never aborts the other months.
func (c *Client) Month(ctx context.Context, year int, month time.Month) MonthResult {
	page, err := c.fetchPage(ctx, year, month)
	if err != nil {
		return MonthResult{
			Year:   year,
			Month:  month,
			Errors: []error{err},
		}
	}
	return ParseMonth(year, month, page, c.Location, c.PageURL(year, month))
}

// Months fetches n consecutive months starting at the month containing
// from, fanning out with bounded concurrency. Results come back in
// chronological order regardless of completion order.
func (c *Client) Months(ctx context.Context, from time.Time, n int) []MonthResult {
	first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)

	results := make([]MonthResult, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallelism)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			d := first.AddDate(0, i, 0)
			results[i] = c.Month(ctx, d.Year(), d.Month())
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fetchPage retrieves one schedule page and transcodes it from EUC-JP.
func (c *Client) fetchPage(ctx context.Context, year int, month time.Month) (string, error) {
	url := c.PageURL(year, month)
	if c.Logger != nil {
		c.Logger.Debug("fetching calendar page", "url", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}
	req.SetBasicAuth(c.Username, c.Password)

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	decoded, err := io.ReadAll(transform.NewReader(resp.Body, japanese.EUCJP.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", url, err)
	}
	return string(decoded), nil
}
