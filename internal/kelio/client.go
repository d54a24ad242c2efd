package kelio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

type Config struct {
	BaseURL     string
	APIKey      string
	CallTimeout time.Duration
}

// Client talks to the Kelio HR gateway. Every call carries the
// configured per-call timeout; a timeout, transport failure, non-200
// status or malformed payload all surface as dto.ExternalSystemError,
// which the sync loop treats as retryable.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	log     zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                "interim365-kelio",
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		log:     log.With().Str("component", "kelio").Logger(),
	}
}

type matriculesResponse struct {
	Matricules []string `json:"matricules"`
}

type employeesResponse struct {
	Employees []dto.ExternalEmployee `json:"employees"`
}

func (c *Client) ListMatricules(ctx context.Context, mode dto.SyncMode, since time.Time) ([]string, error) {
	url := c.baseURL + "/api/v1/employees/matricules"
	if mode == dto.SyncIncremental && !since.IsZero() {
		url += "?since=" + since.UTC().Format(time.RFC3339)
	}

	var out matriculesResponse
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	return out.Matricules, nil
}

func (c *Client) FetchEmployees(ctx context.Context, matricules []string) ([]dto.ExternalEmployee, error) {
	url := c.baseURL + "/api/v1/employees?matricules=" + strings.Join(matricules, ",")

	var out employeesResponse
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	return out.Employees, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	if err := ctx.Err(); err != nil {
		return &dto.ExternalSystemError{Op: "call " + url, Err: err}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	started := time.Now()
	if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
		c.log.Warn().Err(err).Str("url", url).Dur("elapsed", time.Since(started)).Msg("kelio call failed")
		return &dto.ExternalSystemError{Op: "GET " + url, Err: err}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return &dto.ExternalSystemError{
			Op:  "GET " + url,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &dto.ExternalSystemError{Op: "decode " + url, Err: err}
	}

	c.log.Debug().Str("url", url).Dur("elapsed", time.Since(started)).Msg("kelio call ok")
	return nil
}
