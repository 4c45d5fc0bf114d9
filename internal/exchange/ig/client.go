package ig

import (
	"alertbot/internal/exchange"
	"alertbot/internal/logger"
	"net/http"
	"time"
)

var _ exchange.Client = (*Client)(nil)

type Options struct {
	Currency string
	Expiry   string
}

func New(baseURL, apiKey string, session *Session, opts Options, log *logger.Logger) *Client {
	if opts.Currency == "" {
		opts.Currency = "GBP"
	}
	if opts.Expiry == "" {
		opts.Expiry = "DFB"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		session: session,
		opts:    opts,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log:          log,
		retries:      3,
		retryBackoff: 1 * time.Second,
	}
}
