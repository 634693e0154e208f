package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Compound Module Error Codes
const (
	ErrCodeCompoundNotFound      ErrorCode = "CMP_001"
	ErrCodeCompoundAlreadyExists ErrorCode = "CMP_002"
	ErrCodeCompoundInvalidName   ErrorCode = "CMP_003"
	ErrCodeCompoundInvalidCID    ErrorCode = "CMP_004"
	ErrCodeCompoundInvalidSMILES ErrorCode = "CMP_005"
	ErrCodeSearchQueryInvalid    ErrorCode = "CMP_006"
)

// Product Module Error Codes
const (
	ErrCodeProductNotFound      ErrorCode = "PRD_001"
	ErrCodeProductAlreadyExists ErrorCode = "PRD_002"
	ErrCodeProductInvalidName   ErrorCode = "PRD_003"
	ErrCodeIngredientNotFound   ErrorCode = "PRD_004"
	ErrCodeIngredientDuplicate  ErrorCode = "PRD_005"
)

// Similarity Module Error Codes
const (
	ErrCodeSimilarityNotFound     ErrorCode = "SIM_001"
	ErrCodeSimilarityDuplicate    ErrorCode = "SIM_002"
	ErrCodeSimilarityScoreInvalid ErrorCode = "SIM_003"
	ErrCodeSimilaritySelfCompare  ErrorCode = "SIM_004"
)

// Data Source Error Codes (MFDS / PubChem upstreams)
const (
	ErrCodeDataSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeDataSourceRateLimited ErrorCode = "SRC_002"
	ErrCodeDataSourceAuthFailed  ErrorCode = "SRC_003"
	ErrCodeDataSourceParseError  ErrorCode = "SRC_004"
)

// Aliases used by factory functions and cross-layer checks.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeUnauthorized = ErrCodeUnauthorized
	CodeForbidden    = ErrCodeForbidden
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeRateLimit    = ErrCodeTooManyRequests
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")

	CodeDBQueryError      = ErrCodeDatabaseError
	CodeDBConnectionError = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,

	ErrCodeCompoundNotFound:      http.StatusNotFound,
	ErrCodeCompoundAlreadyExists: http.StatusConflict,
	ErrCodeCompoundInvalidName:   http.StatusBadRequest,
	ErrCodeCompoundInvalidCID:    http.StatusBadRequest,
	ErrCodeCompoundInvalidSMILES: http.StatusBadRequest,
	ErrCodeSearchQueryInvalid:    http.StatusBadRequest,

	ErrCodeProductNotFound:      http.StatusNotFound,
	ErrCodeProductAlreadyExists: http.StatusConflict,
	ErrCodeProductInvalidName:   http.StatusBadRequest,
	ErrCodeIngredientNotFound:   http.StatusNotFound,
	ErrCodeIngredientDuplicate:  http.StatusConflict,

	ErrCodeSimilarityNotFound:     http.StatusNotFound,
	ErrCodeSimilarityDuplicate:    http.StatusConflict,
	ErrCodeSimilarityScoreInvalid: http.StatusBadRequest,
	ErrCodeSimilaritySelfCompare:  http.StatusBadRequest,

	ErrCodeDataSourceUnavailable: http.StatusServiceUnavailable,
	ErrCodeDataSourceRateLimited: http.StatusTooManyRequests,
	ErrCodeDataSourceAuthFailed:  http.StatusBadGateway,
	ErrCodeDataSourceParseError:  http.StatusBadGateway,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",

	ErrCodeCompoundNotFound:      "compound not found",
	ErrCodeCompoundAlreadyExists: "compound already exists",
	ErrCodeCompoundInvalidName:   "invalid compound name",
	ErrCodeCompoundInvalidCID:    "invalid PubChem CID",
	ErrCodeCompoundInvalidSMILES: "invalid SMILES format",
	ErrCodeSearchQueryInvalid:    "invalid search query",

	ErrCodeProductNotFound:      "product not found",
	ErrCodeProductAlreadyExists: "product already exists",
	ErrCodeProductInvalidName:   "invalid product name",
	ErrCodeIngredientNotFound:   "product ingredient not found",
	ErrCodeIngredientDuplicate:  "ingredient already mapped for product",

	ErrCodeSimilarityNotFound:     "similarity analysis not found",
	ErrCodeSimilarityDuplicate:    "similarity pair already recorded",
	ErrCodeSimilarityScoreInvalid: "similarity score out of range",
	ErrCodeSimilaritySelfCompare:  "compound cannot be compared with itself",

	ErrCodeDataSourceUnavailable: "data source unavailable",
	ErrCodeDataSourceRateLimited: "data source rate limited",
	ErrCodeDataSourceAuthFailed:  "data source authentication failed",
	ErrCodeDataSourceParseError:  "failed to parse data source response",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
