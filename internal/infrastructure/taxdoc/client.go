package taxdoc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Config holds the tax document service connection settings.
type Config struct {
	BaseURL     string
	AccountID   string
	LicenseKey  string
	CompanyCode string
	Timeout     time.Duration
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("taxdoc: base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("taxdoc: invalid base URL: %w", err)
	}
	if c.AccountID == "" {
		return errors.New("taxdoc: account ID is required")
	}
	if c.LicenseKey == "" {
		return errors.New("taxdoc: license key is required")
	}
	return nil
}

// TransportError indicates the call may not have reached the service, or
// the response could not be read. The caller cannot know whether a
// document was created and must not record the attempt.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("taxdoc: %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError indicates the service received the call and rejected it.
type ServiceError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("taxdoc: %s: service error %d %s: %s", e.Op, e.StatusCode, e.Code, e.Message)
}

// wireError is the service's error envelope.
type wireError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client is a minimal client for the external tax document service.
type Client struct {
	config *Config
	http   *http.Client
	auth   string
	logger *zap.Logger
}

// NewClient creates a new tax document service client.
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	creds := base64.StdEncoding.EncodeToString([]byte(config.AccountID + ":" + config.LicenseKey))
	return &Client{
		config: config,
		http:   &http.Client{Timeout: timeout},
		auth:   "Basic " + creds,
		logger: logger,
	}, nil
}

// CreateTransaction submits a sale or return document for tax calculation.
func (c *Client) CreateTransaction(ctx context.Context, req *CreateTransactionRequest) (*TransactionResult, error) {
	var result TransactionResult
	if err := c.do(ctx, "create transaction", http.MethodPost, "/api/v2/transactions/create", req, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("transaction created",
		zap.String("code", result.Code),
		zap.String("status", result.Status),
		zap.String("total_tax", result.TotalTax.String()))
	return &result, nil
}

// Commit finalizes a previously created document.
func (c *Client) Commit(ctx context.Context, companyCode, transactionCode string) error {
	path := fmt.Sprintf("/api/v2/companies/%s/transactions/%s/commit",
		url.PathEscape(companyCode), url.PathEscape(transactionCode))
	body := map[string]bool{"commit": true}
	return c.do(ctx, "commit transaction", http.MethodPost, path, body, nil)
}

// Void cancels a previously created document.
func (c *Client) Void(ctx context.Context, companyCode, transactionCode string) error {
	path := fmt.Sprintf("/api/v2/companies/%s/transactions/%s/void",
		url.PathEscape(companyCode), url.PathEscape(transactionCode))
	body := map[string]string{"code": "DocVoided"}
	return c.do(ctx, "void transaction", http.MethodPost, path, body, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= 400 {
		svcErr := &ServiceError{Op: op, StatusCode: resp.StatusCode}
		var we wireError
		if json.Unmarshal(data, &we) == nil && we.Error.Message != "" {
			svcErr.Code = we.Error.Code
			svcErr.Message = we.Error.Message
		} else {
			svcErr.Message = string(data)
		}
		return svcErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
		}
	}
	return nil
}
