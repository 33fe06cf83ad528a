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

// Common domain errors.
//
// Shortfall on an outbound request is deliberately NOT an error: callers receive
// an explicit flag on the allocation result and decide whether to block or allow.
var (
	ErrNotFound        = NewDomainError("NOT_FOUND", "SKU not found")
	ErrInvalidInput    = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidQuantity = NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	ErrInvalidPolicy   = NewDomainError("INVALID_POLICY", "Unknown allocation policy")
	ErrLedgerInvariant = NewDomainError("LEDGER_INVARIANT", "Ledger invariant violated")
)
