// Package prices downloads daily close and volume history from a Yahoo
// chart compatible endpoint.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/edgarscore/internal/net/client"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Bar is one trading day.
type Bar struct {
	Time   time.Time
	Close  float64
	Volume float64
}

// Client fetches price history.
type Client struct {
	http    *http.Client
	baseURL string
	now     func() time.Time
}

// New returns a Client. An empty baseURL uses DefaultBaseURL.
func New(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		cfg := client.DefaultConfig("prices")
		cfg.UserAgent = "Mozilla/5.0 (compatible; edgarscore)"
		cfg.RPS = 2
		httpClient = client.New(cfg)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History returns the full daily history of ticker, oldest first. Days with
// no close are skipped; a missing volume is 0.
func (c *Client) History(ctx context.Context, ticker string) ([]Bar, error) {
	q := url.Values{}
	q.Set("period1", "0")
	q.Set("period2", strconv.FormatInt(c.now().Unix(), 10))
	q.Set("interval", "1d")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(strings.ToUpper(ticker)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history %s: %w", ticker, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &client.ProviderError{
			Provider:   "prices",
			Kind:       client.KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("history %s", ticker),
		}
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", ticker, err)
	}
	if e := body.Chart.Error; e != nil {
		return nil, fmt.Errorf("history %s: %s: %s", ticker, e.Code, e.Description)
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	res := body.Chart.Result[0]
	quote := res.Indicators.Quote[0]
	bars := make([]Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		bar := Bar{Time: time.Unix(ts, 0).UTC(), Close: *quote.Close[i]}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
