package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quillpress/quill/src/config"
	"github.com/quillpress/quill/src/perf"
	"github.com/quillpress/quill/src/utils"
)

// SanityClient runs GROQ queries against the Sanity HTTP query API.
type SanityClient struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	UseCdn     bool
	Token      string
	// Replaces https://<project>.api.sanity.io when set.
	APIHost string

	HTTPClient *http.Client
}

var _ Fetcher = &SanityClient{}

func NewSanityClient(cfg config.SanityConfig) *SanityClient {
	return &SanityClient{
		ProjectID:  cfg.ProjectID,
		Dataset:    utils.OrDefault(cfg.Dataset, "production"),
		APIVersion: utils.OrDefault(cfg.APIVersion, "2021-03-25"),
		UseCdn:     cfg.UseCdn,
		Token:      cfg.Token,
		APIHost:    cfg.APIHost,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SanityClient) Host() string {
	if c.APIHost != "" {
		return strings.TrimSuffix(c.APIHost, "/")
	}
	api := "api"
	if c.UseCdn {
		api = "apicdn"
	}
	return fmt.Sprintf("https://%s.%s.sanity.io", c.ProjectID, api)
}

// MutateURL is the endpoint for creating and patching documents. Requests to
// it need a token with write access. Writes never go through the CDN.
func (c *SanityClient) MutateURL() string {
	direct := *c
	direct.UseCdn = false
	return direct.apiURL("mutate") + "?returnIds=true"
}

func (c *SanityClient) apiURL(endpoint string) string {
	return fmt.Sprintf("%s/v%s/data/%s/%s", c.Host(), strings.TrimPrefix(c.APIVersion, "v"), endpoint, url.PathEscape(c.Dataset))
}

// EncodeParams turns params into Sanity's $name query parameters. Values are
// JSON encoded, so strings arrive quoted and cannot change the query.
func EncodeParams(query string, params Params) (url.Values, error) {
	values := url.Values{}
	values.Set("query", query)
	for name, val := range params {
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query parameter %s: %w", name, err)
		}
		values.Set("$"+name, string(encoded))
	}
	return values, nil
}

func (c *SanityClient) Fetch(ctx context.Context, q Query, params Params) (json.RawMessage, error) {
	b := perf.ExtractPerf(ctx).StartBlock("CONTENT", q.Name)
	defer b.End()

	values, err := EncodeParams(q.GROQ, params)
	if err != nil {
		return nil, malformed(q, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL("query")+"?"+values.Encode(), nil)
	if err != nil {
		return nil, transportError(ctx, q, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, transportError(ctx, q, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, transportError(ctx, q, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &FetchError{
			Kind:       Network,
			Query:      q.Name,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("%s", utils.Truncate(strings.TrimSpace(string(body)), 300)),
		}
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, malformed(q, err)
	}
	result, ok := parsed["result"]
	if !ok {
		return nil, malformed(q, fmt.Errorf("response has no result field"))
	}

	return result, nil
}
