package brokerage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"accountability/internal/application/port"
	"accountability/internal/domain/model"
)

const (
	DefaultBaseURL = "https://api.robinhood.com"

	// transfer listings are paginated; stop following "next" after this many pages
	maxPages = 100
)

// ErrUnauthorized 错误：凭证被拒绝
var ErrUnauthorized = errors.New("brokerage rejected credentials")

// ErrForeignPage 错误：分页链接指向其他主机
var ErrForeignPage = errors.New("pagination link leaves the brokerage host")

type Config struct {
	BaseURL           string
	Account           string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client 券商 REST 客户端
type Client struct {
	baseURL string
	account string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		account: cfg.Account,
		token:   cfg.Token,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With().Str("component", "brokerage").Logger(),
	}
}

// HistoricalPortfolio fetches the equity history for one query.
func (c *Client) HistoricalPortfolio(ctx context.Context, q model.HistoricalQuery) (*model.HistoricalPortfolio, error) {
	params := url.Values{}
	params.Set("interval", string(q.Fidelity))
	params.Set("span", string(q.Span))
	params.Set("bounds", string(q.Bounds))
	endpoint := fmt.Sprintf("%s/portfolios/historicals/%s/?%s", c.baseURL, url.PathEscape(c.account), params.Encode())

	c.log.Info().
		Str("fidelity", string(q.Fidelity)).
		Str("span", string(q.Span)).
		Str("bounds", string(q.Bounds)).
		Msg("fetching historical portfolio")

	var body map[string]any
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return nil, fmt.Errorf("historical portfolio: %w", err)
	}
	hp := DecodeHistoricalPortfolio(body, c.log)
	return &hp, nil
}

type page struct {
	Next    *string          `json:"next"`
	Results []map[string]any `json:"results"`
}

// BankTransfers fetches every ACH transfer, following pagination.
func (c *Client) BankTransfers(ctx context.Context) ([]model.Transfer, error) {
	c.log.Info().Msg("fetching bank transfers")

	endpoint := c.baseURL + "/ach/transfers/"
	var out []model.Transfer
	for i := 0; endpoint != "" && i < maxPages; i++ {
		var p page
		if err := c.getJSON(ctx, endpoint, &p); err != nil {
			return nil, fmt.Errorf("bank transfers: %w", err)
		}
		for _, item := range p.Results {
			out = append(out, DecodeTransfer(item, c.log))
		}
		endpoint = ""
		if p.Next != nil && *p.Next != "" {
			next, err := c.sameOrigin(*p.Next)
			if err != nil {
				return nil, fmt.Errorf("bank transfers: %w", err)
			}
			endpoint = next
		}
	}
	return out, nil
}

// sameOrigin resolves a pagination link against the base URL and refuses
// links to another scheme or host, which would receive the bearer token.
func (c *Client) sameOrigin(link string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	next, err := base.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid next link %q: %w", link, err)
	}
	if next.Scheme != base.Scheme || next.Host != base.Host {
		return "", fmt.Errorf("%w: %s", ErrForeignPage, next.Redacted())
	}
	return next.String(), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: http %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("brokerage http %d: %s", resp.StatusCode, string(body))
	}

	return json.Unmarshal(body, out)
}

var _ port.PortfolioSource = (*Client)(nil)
