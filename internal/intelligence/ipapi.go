package intelligence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/pterm/pterm"
	"golang.org/x/time/rate"
)

// errRateLimited marks lookups refused by the local request budget. The upstream was never asked.
var errRateLimited = errors.New("ip-api request budget exhausted")

const (
	SourceIPAPI = "ipapi"

	ipAPIFields = "status,message,country,city,lat,lon,as,proxy,hosting"
)

// IPAPIProvider queries an ip-api.com compatible JSON endpoint
type IPAPIProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *pterm.Logger
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Country string  `json:"country"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	AS      string  `json:"as"`
	Proxy   bool    `json:"proxy"`
	Hosting bool    `json:"hosting"`
}

// NewIPAPIProvider builds a client limited to ratePerMinute requests.
func NewIPAPIProvider(baseURL string, ratePerMinute int, timeout time.Duration, logger *pterm.Logger) *IPAPIProvider {
	if ratePerMinute <= 0 {
		ratePerMinute = 45
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &IPAPIProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), 1),
		logger:  logger,
	}
}

func (p *IPAPIProvider) Analyze(ctx context.Context, ipAddress string) (*Result, error) {
	if !IsPublic(ipAddress) {
		return nil, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrUnavailable, errRateLimited, err)
	}

	endpoint := fmt.Sprintf("%s/json/%s?fields=%s", p.baseURL, url.PathEscape(ipAddress), ipAPIFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	if body.Status != "success" {
		// "reserved range", "invalid query" and friends: the service has no answer for this address
		p.logger.Debug("ip-api returned no data", p.logger.Args("ip", ipAddress, "message", body.Message))
		return nil, nil
	}

	result := &Result{
		HasLocation:  true,
		Latitude:     body.Lat,
		Longitude:    body.Lon,
		IsVPN:        body.Proxy,
		IsDataCenter: body.Hosting,
		Country:      body.Country,
		City:         body.City,
		Source:       SourceIPAPI,
	}
	result.ASN, result.ASNOrg = parseASField(body.AS)

	isVPN, isDataCenter := ClassifyASN(result.ASN)
	result.IsVPN = result.IsVPN || isVPN
	result.IsDataCenter = result.IsDataCenter || isDataCenter

	return result, nil
}

// parseASField splits "AS15169 Google LLC" into its number and organisation.
func parseASField(as string) (uint, string) {
	as = strings.TrimSpace(as)
	if !strings.HasPrefix(as, "AS") {
		return 0, as
	}
	number, org, _ := strings.Cut(as[2:], " ")
	n, err := strconv.ParseUint(number, 10, 32)
	if err != nil {
		return 0, as
	}
	return uint(n), strings.TrimSpace(org)
}
