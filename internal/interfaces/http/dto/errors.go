package dto

import "net/http"

// Error codes returned in ErrorInfo.Code. Domain error codes are passed
// through unchanged.
const (
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeValidation = "VALIDATION_ERROR"

	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"

	ErrCodeOutOfStock  = "OUT_OF_STOCK"
	ErrCodeInvalidSku  = "INVALID_SKU"
	ErrCodeSkuMismatch = "SKU_MISMATCH"

	ErrCodeInvalidBatchRef = "INVALID_BATCH_REF"
	ErrCodeInvalidSkuValue = "INVALID_SKU_VALUE"
	ErrCodeInvalidQuantity = "INVALID_QUANTITY"

	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Allocation failures are the client's problem, not a missing resource.
	ErrCodeOutOfStock:  http.StatusBadRequest,
	ErrCodeInvalidSku:  http.StatusBadRequest,
	ErrCodeSkuMismatch: http.StatusBadRequest,

	ErrCodeInvalidBatchRef: http.StatusBadRequest,
	ErrCodeInvalidSkuValue: http.StatusBadRequest,
	ErrCodeInvalidQuantity: http.StatusBadRequest,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
