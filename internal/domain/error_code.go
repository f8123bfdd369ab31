package domain

import (
	"fmt"
	"strconv"
)

// ErrorCode identifies a specific failure condition. Every defined code
// belongs to exactly one category range.
type ErrorCode int

// ErrorCategory is the coarse failure grouping that drives recovery policy
type ErrorCategory string

const (
	CategoryAuth         ErrorCategory = "auth"
	CategoryValidation   ErrorCategory = "validation"
	CategoryStorage      ErrorCategory = "storage"
	CategoryBusinessRule ErrorCategory = "business_rule"
	CategoryExternal     ErrorCategory = "external"
	CategorySystem       ErrorCategory = "system"
	CategoryRateLimit    ErrorCategory = "rate_limit"
)

// Severity of a failure, derived from its category only
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Well-known codes raised by callers
const (
	// Auth 1000-1999
	CodeAuthInvalidCredentials ErrorCode = 1001
	CodeAuthSessionExpired     ErrorCode = 1002
	CodeAuthForbidden          ErrorCode = 1003
	CodeAuthTokenInvalid       ErrorCode = 1004

	// Validation 2000-2999
	CodeValidationRequired      ErrorCode = 2001
	CodeValidationFormat        ErrorCode = 2002
	CodeValidationOutOfRange    ErrorCode = 2003
	CodeValidationDuplicateName ErrorCode = 2004

	// Storage 3000-3999
	CodeStorageConnection ErrorCode = 3001
	CodeStorageQuery      ErrorCode = 3002
	CodeStorageNotFound   ErrorCode = 3003
	CodeStorageConflict   ErrorCode = 3004
	CodeStorageTimeout    ErrorCode = 3005

	// Business rules 4000-4999
	CodeBusinessQuotaExceeded    ErrorCode = 4001
	CodeBusinessInvalidState     ErrorCode = 4002
	CodeBusinessOperationDenied  ErrorCode = 4003
	CodeBusinessScheduleConflict ErrorCode = 4004

	// External dependencies 5000-5999
	CodeExternalUnavailable ErrorCode = 5001
	CodeExternalTimeout     ErrorCode = 5002
	CodeExternalBadResponse ErrorCode = 5003
	CodeExternalAIProvider  ErrorCode = 5004

	// System 6000-6999
	CodeSystemInternal     ErrorCode = 6001
	CodeSystemOutOfMemory  ErrorCode = 6002
	CodeSystemMaintenance  ErrorCode = 6003
	CodeSystemNetworkError ErrorCode = 6004

	// Rate limiting 7000-7999
	CodeRateLimitTooManyRequests ErrorCode = 7001
	CodeRateLimitQuotaWindow     ErrorCode = 7002
)

// codeRange maps a contiguous inclusive code range to a category
type codeRange struct {
	Min      ErrorCode
	Max      ErrorCode
	Category ErrorCategory
}

// codeRanges must stay sorted and non-overlapping
var codeRanges = [...]codeRange{
	{Min: 1000, Max: 1999, Category: CategoryAuth},
	{Min: 2000, Max: 2999, Category: CategoryValidation},
	{Min: 3000, Max: 3999, Category: CategoryStorage},
	{Min: 4000, Max: 4999, Category: CategoryBusinessRule},
	{Min: 5000, Max: 5999, Category: CategoryExternal},
	{Min: 6000, Max: 6999, Category: CategorySystem},
	{Min: 7000, Max: 7999, Category: CategoryRateLimit},
}

// categoryInfo holds the per-category derived attributes
type categoryInfo struct {
	Severity       Severity
	Retryable      bool
	DefaultMessage string
}

var categoryTable = map[ErrorCategory]categoryInfo{
	CategoryAuth: {
		Severity:       SeverityHigh,
		Retryable:      false,
		DefaultMessage: "Authentication is required. Please sign in again.",
	},
	CategoryValidation: {
		Severity:       SeverityLow,
		Retryable:      false,
		DefaultMessage: "Some of the provided values are invalid.",
	},
	CategoryStorage: {
		Severity:       SeverityHigh,
		Retryable:      true,
		DefaultMessage: "Data could not be saved or loaded. Please try again.",
	},
	CategoryBusinessRule: {
		Severity:       SeverityMedium,
		Retryable:      false,
		DefaultMessage: "This action is not allowed right now.",
	},
	CategoryExternal: {
		Severity:       SeverityMedium,
		Retryable:      true,
		DefaultMessage: "An external service is not responding.",
	},
	CategorySystem: {
		Severity:       SeverityCritical,
		Retryable:      true,
		DefaultMessage: "An unexpected system error occurred.",
	},
	CategoryRateLimit: {
		Severity:       SeverityMedium,
		Retryable:      true,
		DefaultMessage: "Too many requests. Please wait a moment.",
	},
}

// Classify returns the category whose range contains code.
// Codes outside every range are a configuration fault, never a default category.
func Classify(code ErrorCode) (ErrorCategory, error) {
	for _, r := range codeRanges {
		if code >= r.Min && code <= r.Max {
			return r.Category, nil
		}
	}
	return "", &ConfigurationFault{
		Code:   code,
		Reason: "error code is outside all defined ranges",
	}
}

// MustClassify is the panic-on-error variant of Classify, meant for
// package-level declarations of known codes.
func MustClassify(code ErrorCode) ErrorCategory {
	category, err := Classify(code)
	if err != nil {
		panic(err)
	}
	return category
}

// SeverityOf returns the severity for a category. Unknown categories are
// reported as critical so that they are never silenced.
func SeverityOf(category ErrorCategory) Severity {
	info, ok := categoryTable[category]
	if !ok {
		return SeverityCritical
	}
	return info.Severity
}

// IsRetryableByDefault reports whether failures of this category are retried
func IsRetryableByDefault(category ErrorCategory) bool {
	return categoryTable[category].Retryable
}

// DefaultMessage returns the human message shown for a category
func DefaultMessage(category ErrorCategory) string {
	info, ok := categoryTable[category]
	if !ok {
		return "An unexpected error occurred."
	}
	return info.DefaultMessage
}

// Categories returns all categories in code-range order
func Categories() []ErrorCategory {
	out := make([]ErrorCategory, 0, len(codeRanges))
	for _, r := range codeRanges {
		out = append(out, r.Category)
	}
	return out
}

// CategoryRange returns the inclusive code range of a category
func CategoryRange(category ErrorCategory) (min, max ErrorCode, ok bool) {
	for _, r := range codeRanges {
		if r.Category == category {
			return r.Min, r.Max, true
		}
	}
	return 0, 0, false
}

// IsValid checks that the category belongs to the closed set
func (c ErrorCategory) IsValid() bool {
	_, ok := categoryTable[c]
	return ok
}

func (c ErrorCategory) String() string {
	return string(c)
}

// Valid reports whether the code belongs to a defined range
func (c ErrorCode) Valid() bool {
	_, err := Classify(c)
	return err == nil
}

// Category recomputes the category from the code range
func (c ErrorCode) Category() (ErrorCategory, error) {
	return Classify(c)
}

func (c ErrorCode) String() string {
	return strconv.Itoa(int(c))
}

// ParseErrorCode parses a decimal code and checks that it is defined
func ParseErrorCode(s string) (ErrorCode, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, NewValidationError(fmt.Sprintf("invalid error code %q", s))
	}
	code := ErrorCode(n)
	if _, err := Classify(code); err != nil {
		return 0, err
	}
	return code, nil
}

// Rank orders severities from low to critical
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as other or more
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}
