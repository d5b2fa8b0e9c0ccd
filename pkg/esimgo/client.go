package esimgo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// defaultPerPage is the catalogue page size requested per call.
const defaultPerPage = 100

// Client is a minimal HTTP client for the eSIM Go API, authenticated with a
// static API key header.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	debug      bool
}

// NewClient constructs a new eSIM Go client with sane defaults.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		debug:      os.Getenv("ENV") == "development",
	}
}

// GetCataloguePage fetches one page of the bundle catalogue.
func (c *Client) GetCataloguePage(ctx context.Context, page int) (*CataloguePage, error) {
	endpoint := fmt.Sprintf("/catalogue?page=%d&perPage=%d", page, defaultPerPage)
	var result CataloguePage
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetCatalogue paginates through the whole bundle catalogue. Any page
// failure fails the entire fetch.
func (c *Client) GetCatalogue(ctx context.Context) ([]Bundle, error) {
	var all []Bundle
	for page := 1; ; page++ {
		result, err := c.GetCataloguePage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(result.Bundles) == 0 {
			break
		}
		all = append(all, result.Bundles...)
		if result.PageCount > 0 && page >= result.PageCount {
			break
		}
	}
	return all, nil
}

// Order purchases a bundle with immediate assignment. Exactly one remote
// call is made per invocation; retry policy belongs to the caller.
func (c *Client) Order(ctx context.Context, bundleName string, quantity int) (*OrderResponse, error) {
	req := OrderRequest{
		Type:   "transaction",
		Assign: true,
		Order:  []OrderLine{{Type: "bundle", Quantity: quantity, Item: bundleName}},
	}
	var result OrderResponse
	if err := c.doRequest(ctx, http.MethodPost, "/orders", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOrganisation returns account status including the prepaid balance.
func (c *Client) GetOrganisation(ctx context.Context) (*Organisation, error) {
	var result Organisation
	if err := c.doRequest(ctx, http.MethodGet, "/organisation", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetEsim returns the status of an assigned profile.
func (c *Client) GetEsim(ctx context.Context, iccid string) (*EsimDetails, error) {
	var result EsimDetails
	if err := c.doRequest(ctx, http.MethodGet, "/esims/"+iccid, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// doRequest performs an HTTP request with the API key header and decodes
// the JSON response into result.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	var reader io.Reader
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if c.debug {
		log.Debug().
			Str("method", method).
			Str("endpoint", c.baseURL+endpoint).
			Msg("[ESIMGO] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			RawJSON("response", respBody).
			Msg("[ESIMGO] Incoming response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
