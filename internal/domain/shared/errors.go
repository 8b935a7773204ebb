package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrLedgerUnavailable   = NewDomainError("LEDGER_UNAVAILABLE", "Tax call ledger is unavailable")
	ErrBackendUnavailable  = NewDomainError("BACKEND_UNAVAILABLE", "Tax backend is unavailable")
	ErrCurrencyMismatch    = NewDomainError("CURRENCY_MISMATCH", "Monetary amounts have different currencies")
	ErrTenantNotConfigured = NewDomainError("TENANT_NOT_CONFIGURED", "No tax backend configured for tenant")
)
