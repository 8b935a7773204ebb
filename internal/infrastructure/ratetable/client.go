package ratetable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/taxflow/backend/internal/domain/shared/valueobject"
)

// JurisdictionRate is one jurisdiction's sub-rate of a lookup result.
type JurisdictionRate struct {
	Name string          `json:"name"`
	Type string          `json:"type"` // State, County, City, Special
	Rate decimal.Decimal `json:"rate"`
}

// RateResult is the aggregate of all jurisdiction rates applying to a
// location.
type RateResult struct {
	TotalRate decimal.Decimal    `json:"totalRate"`
	Rates     []JurisdictionRate `json:"rates"`
}

// RateSource looks up applicable tax rates for a location.
type RateSource interface {
	// RatesByPostal resolves rates from a country and postal code.
	RatesByPostal(ctx context.Context, country, postalCode string) (*RateResult, error)
	// RatesByAddress resolves rates from a full street address.
	RatesByAddress(ctx context.Context, addr valueobject.Address) (*RateResult, error)
}

// Config holds the rate table service connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("ratetable: base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("ratetable: invalid base URL: %w", err)
	}
	return nil
}

// TransportError indicates the lookup may not have reached the service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ratetable: %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError indicates the service received the lookup and rejected it.
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ratetable: %s: service error %d: %s", e.Op, e.StatusCode, e.Message)
}

// HTTPRateSource implements RateSource against the external rate table
// service.
type HTTPRateSource struct {
	config *Config
	http   *http.Client
	logger *zap.Logger
}

// NewHTTPRateSource creates a new rate table service client.
func NewHTTPRateSource(config *Config, logger *zap.Logger) (*HTTPRateSource, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRateSource{
		config: config,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// RatesByPostal resolves rates from a country and postal code.
func (s *HTTPRateSource) RatesByPostal(ctx context.Context, country, postalCode string) (*RateResult, error) {
	q := url.Values{}
	q.Set("country", country)
	q.Set("postalCode", postalCode)
	return s.get(ctx, "rates by postal code", "/api/v2/taxrates/bypostalcode", q)
}

// RatesByAddress resolves rates from a full street address.
func (s *HTTPRateSource) RatesByAddress(ctx context.Context, addr valueobject.Address) (*RateResult, error) {
	q := url.Values{}
	q.Set("line1", addr.Street())
	q.Set("city", addr.City())
	q.Set("region", addr.Region())
	q.Set("postalCode", addr.PostalCode())
	q.Set("country", addr.Country())
	return s.get(ctx, "rates by address", "/api/v2/taxrates/byaddress", q)
}

func (s *HTTPRateSource) get(ctx context.Context, op, path string, query url.Values) (*RateResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, &ServiceError{Op: op, StatusCode: resp.StatusCode, Message: string(data)}
	}

	var result RateResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	s.logger.Debug("rate lookup completed",
		zap.String("op", op),
		zap.String("total_rate", result.TotalRate.String()),
		zap.Int("jurisdictions", len(result.Rates)))
	return &result, nil
}
