package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string identifier for a specific error condition.
// The prefix before the underscore names the module.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Molecule / matching error codes.
const (
	ErrCodeMoleculeInvalidFormat    ErrorCode = "MOL_003"
	ErrCodeMoleculeParsingFailed    ErrorCode = "MOL_006"
	ErrCodeSubstructureSearchFailed ErrorCode = "MOL_012"
	ErrCodeMalformedGraph           ErrorCode = "MOL_016"
	ErrCodeIndexOutOfRange          ErrorCode = "MOL_017"
	ErrCodeSearchAborted            ErrorCode = "MOL_018"
)

// Short aliases used at call sites.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")

	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeTimeout        = ErrCodeTimeout
	CodeValidation     = ErrCodeValidation
	CodeSerialization  = ErrCodeSerialization
	CodeNotImplemented = ErrCodeNotImplemented

	CodeMoleculeInvalidFormat    = ErrCodeMoleculeInvalidFormat
	CodeMoleculeParsingFailed    = ErrCodeMoleculeParsingFailed
	CodeSubstructureSearchFailed = ErrCodeSubstructureSearchFailed
	CodeMalformedGraph           = ErrCodeMalformedGraph
	CodeIndexOutOfRange          = ErrCodeIndexOutOfRange
	CodeSearchAborted            = ErrCodeSearchAborted
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeMoleculeInvalidFormat:    http.StatusBadRequest,
	ErrCodeMoleculeParsingFailed:    http.StatusBadRequest,
	ErrCodeSubstructureSearchFailed: http.StatusInternalServerError,
	ErrCodeMalformedGraph:           http.StatusUnprocessableEntity,
	ErrCodeIndexOutOfRange:          http.StatusBadRequest,
	ErrCodeSearchAborted:            http.StatusGatewayTimeout,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeMoleculeInvalidFormat:    "unsupported molecule format",
	ErrCodeMoleculeParsingFailed:    "failed to parse molecule",
	ErrCodeSubstructureSearchFailed: "substructure search failed",
	ErrCodeMalformedGraph:           "malformed molecular graph",
	ErrCodeIndexOutOfRange:          "index out of range",
	ErrCodeSearchAborted:            "substructure search aborted",
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

// IsClientError reports whether the code corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
