package freerice

import (
	"net/http/cookiejar"
	"strings"
	"time"

	"ricefarm/internal/components/assert"
	"ricefarm/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("freerice")

const (
	DefaultAccountsURL = "https://accounts.freerice.com"
	DefaultEngineURL   = "https://engine.freerice.com"
	DefaultOrigin      = "https://play.freerice.com"
	// DefaultGameID is the multiplication table game.
	DefaultGameID    = "232b86f5-d908-4327-9a33-dec59f9f661f"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

type Options struct {
	AccountsURL string
	EngineURL   string
	Origin      string
	GameID      string
	UserAgent   string
	// Timeout is applied to every request, 0 leaves the transport default.
	Timeout time.Duration
	// RateLimit is the maximum requests per second of a single session, 0 disables it.
	RateLimit float64
	// CloudflareBypass wraps the transport with browser-like TLS settings.
	CloudflareBypass bool
}

func DefaultOptions() Options {
	return Options{
		AccountsURL:      DefaultAccountsURL,
		EngineURL:        DefaultEngineURL,
		Origin:           DefaultOrigin,
		GameID:           DefaultGameID,
		UserAgent:        DefaultUserAgent,
		Timeout:          time.Second * 30,
		CloudflareBypass: true,
	}
}

// Client creates sessions, it holds no per-user state and can be shared.
type Client struct {
	opts   Options
	tel    telemetry.API
	output telemetry.InstrumentOutput
}

func NewClient(opts Options, tel telemetry.API) *Client {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.AccountsURL)
	assert.NotEmptyStr(opts.EngineURL)
	assert.NotEmptyStr(opts.GameID)

	opts.AccountsURL = strings.TrimRight(opts.AccountsURL, "/")
	opts.EngineURL = strings.TrimRight(opts.EngineURL, "/")

	return &Client{
		opts: opts,
		tel:  telemetry.NewScopedAPI("freerice", tel),
	}
}

// SetInstrumentOutput makes every session created afterwards dump its http exchanges.
func (c *Client) SetInstrumentOutput(output telemetry.InstrumentOutput) {
	c.output = output
}

func (c *Client) Options() Options {
	return c.opts
}

// NewSession creates an unauthenticated session with its own cookie jar.
func (c *Client) NewSession() (*Session, error) {
	httpClient := resty.New()
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if c.opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	if c.opts.UserAgent != "" {
		httpClient.SetHeader("user-agent", c.opts.UserAgent)
	}
	if c.opts.Timeout > 0 {
		httpClient.SetTimeout(c.opts.Timeout)
	}

	if c.opts.RateLimit > 0 {
		// burst of 1 keeps requests evenly spaced
		rateLimiter := rate.NewLimiter(rate.Limit(c.opts.RateLimit), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, c.tel, c.output)

	return &Session{
		http: httpClient,
		opts: c.opts,
		tel:  c.tel,
	}, nil
}
