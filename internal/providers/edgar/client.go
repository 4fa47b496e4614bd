// Package edgar fetches the SEC ticker list, the quarterly full-text master
// index and annual report facts from EDGAR.
package edgar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding/charmap"

	"github.com/sawpanic/edgarscore/internal/net/client"
	"github.com/sawpanic/edgarscore/internal/persistence"
)

const (
	DefaultBaseURL = "https://www.sec.gov"
	tickerListPath = "/include/ticker.txt"
	archivesPath   = "/Archives/"
)

// Client talks to www.sec.gov. The http.Client is expected to carry the
// SEC User-Agent and rate limit, see client.New.
type Client struct {
	http    *http.Client
	baseURL string
}

// New returns a Client. An empty baseURL uses DefaultBaseURL.
func New(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = client.New(client.DefaultConfig("edgar"))
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) get(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &client.ProviderError{
			Provider:   "edgar",
			Kind:       client.KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("GET %s", path),
		}
	}
	return resp.Body, nil
}

// TickerCIK is one line of the SEC ticker list.
type TickerCIK struct {
	Ticker string
	CIK    string
}

// FetchTickerList downloads the ticker to CIK mapping.
func (c *Client) FetchTickerList(ctx context.Context) ([]TickerCIK, error) {
	body, err := c.get(ctx, tickerListPath)
	if err != nil {
		return nil, fmt.Errorf("fetch ticker list: %w", err)
	}
	defer body.Close()
	return ParseTickerList(body)
}

// ParseTickerList reads whitespace separated "ticker cik" lines. Malformed
// lines are skipped.
func ParseTickerList(r io.Reader) ([]TickerCIK, error) {
	var out []TickerCIK
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			if len(fields) > 0 {
				log.Debug().Str("line", sc.Text()).Msg("Skipping malformed ticker line")
			}
			continue
		}
		out = append(out, TickerCIK{
			Ticker: strings.ToLower(fields[0]),
			CIK:    persistence.NormalizeCIK(fields[1]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ticker list: %w", err)
	}
	return out, nil
}

// IndexPath is the archive path of a quarterly master index.
func IndexPath(year, quarter int) string {
	return fmt.Sprintf("%sedgar/full-index/%d/QTR%d/master.idx", archivesPath, year, quarter)
}

// FetchIndex downloads one quarter of the master index and keeps annual
// report rows.
func (c *Client) FetchIndex(ctx context.Context, year, quarter int) ([]persistence.IndexEntry, error) {
	if quarter < 1 || quarter > 4 {
		return nil, fmt.Errorf("invalid quarter %d", quarter)
	}
	body, err := c.get(ctx, IndexPath(year, quarter))
	if err != nil {
		return nil, fmt.Errorf("fetch index %d Q%d: %w", year, quarter, err)
	}
	defer body.Close()
	return ParseIndex(body, year, persistence.FormAnnualReport)
}

// FetchYearIndex fetches all four quarters of year. Quarters the archive
// does not have yet are skipped.
func (c *Client) FetchYearIndex(ctx context.Context, year int) ([]persistence.IndexEntry, error) {
	var all []persistence.IndexEntry
	for q := 1; q <= 4; q++ {
		entries, err := c.FetchIndex(ctx, year, q)
		if client.IsNotFound(err) {
			log.Info().Int("year", year).Int("quarter", q).Msg("Index quarter not published")
			continue
		}
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// ParseIndex reads a master.idx document: ISO-8859-1 text whose data rows
// are "CIK|Company Name|Form Type|Date Filed|Filename". Rows of other forms
// are dropped.
func ParseIndex(r io.Reader, year int, form string) ([]persistence.IndexEntry, error) {
	var out []persistence.IndexEntry
	sc := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(r))
	for sc.Scan() {
		parts := strings.Split(strings.TrimSpace(sc.Text()), "|")
		if len(parts) != 5 || parts[2] != form {
			continue
		}
		if _, err := strconv.ParseUint(parts[0], 10, 64); err != nil {
			continue
		}
		filed, err := time.Parse(time.DateOnly, parts[3])
		if err != nil {
			continue
		}
		out = append(out, persistence.IndexEntry{
			CIK:       persistence.NormalizeCIK(parts[0]),
			Year:      year,
			Company:   strings.TrimSpace(parts[1]),
			FormType:  parts[2],
			DateFiled: filed,
			URL:       strings.TrimSpace(parts[4]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return out, nil
}

// FetchFinancials downloads the filing at the archive path url and extracts
// its facts.
func (c *Client) FetchFinancials(ctx context.Context, url string) (*Facts, error) {
	start := time.Now()
	body, err := c.get(ctx, archivesPath+strings.TrimLeft(url, "/"))
	if err != nil {
		return nil, fmt.Errorf("fetch filing %s: %w", url, err)
	}
	defer body.Close()

	facts, err := ExtractFacts(body)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}
	log.Debug().Str("url", url).Int("facts", len(facts.Values)).Dur("elapsed", time.Since(start)).
		Msg("Parsed filing")
	return facts, nil
}
