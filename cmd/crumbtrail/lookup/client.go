// client.go
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/resolver"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/segment"
	"github.com/SanteonNL/crumbtrail/models/fhir"
	"github.com/gregjones/httpcache"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Client reads entity names from the care API
type Client struct {
	BaseURI    string
	HTTPClient *http.Client
	endpoints  map[segment.EntityType]Endpoint
	token      string
	log        zerolog.Logger
}

type ClientConfig struct {
	BaseURI   string
	Token     string
	RetryMax  int
	Timeout   time.Duration
	HTTPCache bool // Honour Cache-Control of the API with an in-memory cache
	Endpoints map[segment.EntityType]Endpoint
}

func NewClient(config ClientConfig, log zerolog.Logger) (*Client, error) {
	if config.BaseURI == "" {
		return nil, fmt.Errorf("base URI is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Endpoints == nil {
		config.Endpoints = DefaultEndpoints()
	}

	log = log.With().Str("component", "lookup_client").Logger()

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = config.RetryMax
	retryClient.Logger = retryLogger{log: log}
	retryClient.HTTPClient = &http.Client{Timeout: config.Timeout}
	if config.HTTPCache {
		retryClient.HTTPClient.Transport = &httpcache.Transport{
			Transport:           http.DefaultTransport,
			Cache:               httpcache.NewMemoryCache(),
			MarkCachedResponses: true,
		}
	}

	return &Client{
		BaseURI:    config.BaseURI,
		HTTPClient: retryClient.StandardClient(),
		endpoints:  config.Endpoints,
		token:      config.Token,
		log:        log,
	}, nil
}

// FetchName implements resolver.NameSource
func (c *Client) FetchName(ctx context.Context, entity segment.EntityType, id string) (string, error) {
	endpoint, ok := c.endpoints[entity]
	if !ok {
		return "", fmt.Errorf("%w: %s", resolver.ErrUnsupportedEntity, entity)
	}

	body, err := c.get(ctx, endpoint.PathFor(url.PathEscape(id)))
	if err != nil {
		return "", err
	}

	name, err := endpoint.Extract(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s response: %w", entity, err)
	}
	return name, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := c.prepareRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	c.signRequest(req)
	return c.sendRequest(req)
}

func (c *Client) prepareRequest(ctx context.Context, method, endpoint string) (*http.Request, error) {
	uri, err := url.JoinPath(c.BaseURI, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) signRequest(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) sendRequest(req *http.Request) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.Debug().
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Bool("from_cache", resp.Header.Get(httpcache.XFromCache) != "").
		Msg("Lookup response")

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", resolver.ErrNotFound, req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Detail != "" {
			return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, apiErr.Detail)
		}
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return bodyBytes, nil
}

func extractName(body []byte) (string, error) {
	var resp NamedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

// extractEncounterName names an encounter after its period start. A start
// that is not a FHIR dateTime is shown as sent.
func extractEncounterName(body []byte) (string, error) {
	var resp EncounterResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		var parseErr *fhir.ParseError
		if errors.As(err, &parseErr) {
			return encounterPrefix + parseErr.Value, nil
		}
		return "", err
	}
	return encounterDisplayName(resp.Period.Start), nil
}

// retryLogger routes retryablehttp's leveled logging to zerolog
type retryLogger struct {
	log zerolog.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Trace().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}
