package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type hitBody struct {
	App       string `json:"app"`
	URI       string `json:"uri"`
	IP        string `json:"ip"`
	Timestamp string `json:"timestamp"`
}

type viewStat struct {
	App  string `json:"app"`
	URI  string `json:"uri"`
	Hits int64  `json:"hits"`
}

// Client is an Aggregator backed by the statistics HTTP service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// RecordHit posts a hit to /hit.
func (c *Client) RecordHit(ctx context.Context, hit Hit) error {
	body, err := json.Marshal(hitBody{
		App:       hit.App,
		URI:       hit.URI,
		IP:        hit.IP,
		Timestamp: hit.Timestamp.Format(TimeLayout),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal hit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hit", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build hit request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send hit")
	}
	defer drain(resp)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("stats service answered %d to hit", resp.StatusCode)
	}
	return nil
}

// QueryViews reads /stats and sums hits per URI.
func (c *Client) QueryViews(ctx context.Context, q ViewQuery) (map[string]int64, error) {
	out := make(map[string]int64, len(q.URIs))
	if len(q.URIs) == 0 {
		return out, nil
	}

	params := url.Values{}
	params.Set("start", q.Start.Format(TimeLayout))
	params.Set("end", q.End.Format(TimeLayout))
	params.Set("unique", strconv.FormatBool(q.Unique))
	for _, uri := range q.URIs {
		params.Add("uris", uri)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build stats request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query stats")
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("stats service answered %d to stats query", resp.StatusCode)
	}

	var stats []viewStat
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, errors.Wrap(err, "failed to decode stats response")
	}
	for _, s := range stats {
		out[s.URI] += s.Hits
	}
	return out, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
