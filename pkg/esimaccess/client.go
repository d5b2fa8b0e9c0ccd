package esimaccess

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// defaultPageSize is the catalogue page size requested per call.
const defaultPageSize = 200

// Config holds eSIM Access API configuration.
type Config struct {
	BaseURL    string
	AccessCode string
	Secret     string
}

// Client is a minimal HTTP client for the eSIM Access open API.
// Authentication is an access-code header plus an HMAC request signature.
type Client struct {
	httpClient *http.Client
	config     Config
	debug      bool
}

// NewClient constructs a new eSIM Access client with sane defaults.
func NewClient(config Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     config,
		debug:      os.Getenv("ENV") == "development",
	}
}

// sign generates an HMAC-SHA256 signature over timestamp+body per the
// eSIM Access open API spec.
func (c *Client) sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.config.Secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ListPackages fetches one page of the package catalogue.
func (c *Client) ListPackages(ctx context.Context, pageNum int) (*PackageListResult, error) {
	req := PackageListRequest{PageNum: pageNum, PageSize: defaultPageSize}
	var resp envelope[PackageListResult]
	if err := c.doRequest(ctx, "/open/package/list", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("package list rejected: %s %s", resp.ErrorCode, resp.ErrorMsg)
	}
	return &resp.Obj, nil
}

// ListAllPackages paginates through the whole catalogue. Any page failure
// fails the entire fetch; callers never see a partial catalogue as complete.
func (c *Client) ListAllPackages(ctx context.Context) ([]Package, error) {
	var all []Package
	for page := 1; ; page++ {
		result, err := c.ListPackages(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(result.PackageList) == 0 {
			break
		}
		all = append(all, result.PackageList...)
		if len(all) >= result.Total {
			break
		}
	}
	return all, nil
}

// Order places a profile order for a package. Exactly one remote call is
// made per invocation; retry policy belongs to the caller.
func (c *Client) Order(ctx context.Context, transactionID, packageCode string, count int) (*OrderResult, error) {
	req := OrderRequest{
		TransactionID: transactionID,
		PackageInfo:   []OrderItem{{PackageCode: packageCode, Count: count}},
	}
	var resp envelope[OrderResult]
	if err := c.doRequest(ctx, "/open/esim/order", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("order rejected: %s %s", resp.ErrorCode, resp.ErrorMsg)
	}
	return &resp.Obj, nil
}

// GetBalance returns the current account balance.
func (c *Client) GetBalance(ctx context.Context) (*BalanceResult, error) {
	var resp envelope[BalanceResult]
	if err := c.doRequest(ctx, "/open/balance/query", struct{}{}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("balance query rejected: %s %s", resp.ErrorCode, resp.ErrorMsg)
	}
	return &resp.Obj, nil
}

// QueryEsim returns the status of a provisioned profile.
func (c *Client) QueryEsim(ctx context.Context, iccid string) (*EsimStatus, error) {
	var resp envelope[EsimStatus]
	if err := c.doRequest(ctx, "/open/esim/query", EsimQueryRequest{ICCID: iccid}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("esim query rejected: %s %s", resp.ErrorCode, resp.ErrorMsg)
	}
	return &resp.Obj, nil
}

// TopUp adds a package to an existing profile.
func (c *Client) TopUp(ctx context.Context, transactionID, iccid, packageCode string) (*OrderResult, error) {
	req := TopUpRequest{TransactionID: transactionID, ICCID: iccid, PackageCode: packageCode}
	var resp envelope[OrderResult]
	if err := c.doRequest(ctx, "/open/esim/topup", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("topup rejected: %s %s", resp.ErrorCode, resp.ErrorMsg)
	}
	return &resp.Obj, nil
}

// doRequest performs the HTTP POST with JSON payloads, signs the request,
// and decodes the JSON response into result.
func (c *Client) doRequest(ctx context.Context, endpoint string, body any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", c.config.BaseURL+endpoint).
			RawJSON("request", payload).
			Msg("[ESIMACCESS] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("RT-AccessCode", c.config.AccessCode)
	req.Header.Set("RT-Timestamp", timestamp)
	req.Header.Set("RT-Signature", c.sign(timestamp, payload))

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
			Msg("[ESIMACCESS] Incoming response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
