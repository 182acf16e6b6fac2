package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"signal_bot/internal/apperr"
	"signal_bot/internal/modules/config"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	apiSecret string
	passph    string
	simulated bool
	tdMode    string
	log       *zap.Logger

	now func() time.Time
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: cfg.OKX.Timeout},
		baseURL:   strings.TrimRight(cfg.OKX.BaseURL, "/"),
		apiKey:    cfg.OKX.APIKey,
		apiSecret: cfg.OKX.APISecret,
		passph:    cfg.OKX.Passphrase,
		simulated: cfg.OKX.Simulated,
		tdMode:    cfg.Trading.MarginMode,
		log:       log.Named("okx"),
		now:       time.Now,
	}
}

// APIError is a non-zero code in the OKX envelope or in the first data item.
type APIError struct {
	Path  string
	Code  string
	Msg   string
	SCode string
	SMsg  string
}

func (e *APIError) Error() string {
	if e.SCode != "" && e.SCode != "0" {
		return fmt.Sprintf("okx %s: code=%s msg=%s sCode=%s sMsg=%s", e.Path, e.Code, e.Msg, e.SCode, e.SMsg)
	}
	return fmt.Sprintf("okx %s: code=%s msg=%s", e.Path, e.Code, e.Msg)
}

type envelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

func (c *Client) sign(ts, method, requestPath, body string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(ts + strings.ToUpper(method) + requestPath + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// request sends one call and decodes the data array of the OKX envelope.
// Transport failures, 5xx and 429 are transient. A non-zero code comes back
// as *APIError together with whatever data the venue returned, so order
// calls can read the per-item sCode.
func request[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any, signed bool) ([]T, error) {
	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		b, err := sonic.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %s", path)
		}
		payload = b
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrapf(err, "new request %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	if signed {
		ts := c.now().UTC().Format("2006-01-02T15:04:05.000Z")
		req.Header.Set("OK-ACCESS-KEY", c.apiKey)
		req.Header.Set("OK-ACCESS-SIGN", c.sign(ts, method, requestPath, string(payload)))
		req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		req.Header.Set("OK-ACCESS-PASSPHRASE", c.passph)
	}
	if c.simulated {
		req.Header.Set("x-simulated-trading", "1")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Transient(path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transient(path, errors.Wrap(err, "read body"))
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
		return nil, apperr.Transient(path, errors.Errorf("http %d: %s", resp.StatusCode, string(data)))
	}

	var env envelope[T]
	if err := sonic.Unmarshal(data, &env); err != nil {
		if resp.StatusCode/100 != 2 {
			return nil, errors.Errorf("%s http %d: %s", path, resp.StatusCode, string(data))
		}
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if env.Code != "0" {
		return env.Data, &APIError{Path: path, Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

func formatDecimal(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
