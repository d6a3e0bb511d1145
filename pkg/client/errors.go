package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrInvalidPayload is returned when a response body does not decode.
	ErrInvalidPayload = errors.New("invalid response payload")
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents bodies that fail schema validation.
	ErrorClassDecode ErrorClass = "decode"
)

// classifyStatus maps an HTTP status code to an ErrorClass.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// APIError is a non-retryable request failure: an error status other than
// 429, or a network failure.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ToS;DR %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("ToS;DR %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// RateLimitedError is returned when the server answers 429 Too Many Requests.
// It is the only error the retry policy retries by default.
type RateLimitedError struct {
	// RetryAfter is the server's Retry-After hint, zero if absent.
	RetryAfter time.Duration
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("ToS;DR rate limited (status 429, retry after %s): %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("ToS;DR rate limited (status 429): %s", e.Message)
}

// IsRateLimited reports whether err is or wraps a *RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// PageFetchError is the terminal failure of a single page.
type PageFetchError struct {
	Endpoint string
	Page     int
	Err      error
}

// Error implements the error interface.
func (e *PageFetchError) Error() string {
	return fmt.Sprintf("fetch %s page %d: %v", e.Endpoint, e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PageFetchError) Unwrap() error {
	return e.Err
}

// errorClassOf returns the ErrorClass carried by err, if any.
func errorClassOf(err error) ErrorClass {
	var apiErr *APIError
	switch {
	case IsRateLimited(err):
		return ErrorClassRateLimit
	case errors.As(err, &apiErr):
		return apiErr.ErrorClass
	case errors.Is(err, ErrInvalidPayload):
		return ErrorClassDecode
	default:
		return ErrorClassNetwork
	}
}
