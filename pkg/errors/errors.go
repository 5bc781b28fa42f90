// Package errors defines the closed error kind set shared by the request
// core and the repository adapters. Adapters translate their native library
// errors into these kinds; the core never inspects backend-specific errors.
package errors

import (
	"fmt"
	"net/http"
)

// Code identifies an error kind.
type Code string

const (
	// Storage kinds surfaced to S3 clients.
	CodeNoSuchBucket   Code = "NO_SUCH_BUCKET"
	CodeObjectNotFound Code = "OBJECT_NOT_FOUND"
	CodeBucketNotEmpty Code = "BUCKET_NOT_EMPTY"
	CodeBadDigest      Code = "BAD_DIGEST"

	// Core kinds.
	CodeQuorumUnreachable Code = "QUORUM_UNREACHABLE"
	CodeDecodeMismatch    Code = "DECODE_MISMATCH"
	CodeLockTimeout       Code = "LOCK_TIMEOUT"
	CodeBackendTransient  Code = "BACKEND_TRANSIENT"
	CodeNotImplemented    Code = "NOT_IMPLEMENTED"
	CodeInvalidConfig     Code = "INVALID_CONFIG"
)

// RACSError carries an error kind plus the failing scope.
type RACSError struct {
	Code    Code
	Message string
	Bucket  string
	Key     string
	Cause   error
}

// Error implements the error interface.
func (e *RACSError) Error() string {
	scope := e.Bucket
	if e.Key != "" {
		scope = e.Bucket + "/" + e.Key
	}
	if scope != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, scope, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RACSError) Unwrap() error { return e.Cause }

// Is matches errors by code, for errors.Is compatibility.
func (e *RACSError) Is(target error) bool {
	if t, ok := target.(*RACSError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithCause attaches the underlying error and returns the receiver.
func (e *RACSError) WithCause(cause error) *RACSError {
	e.Cause = cause
	return e
}

// HTTPStatus maps the kind to the status sent to the client.
func (e *RACSError) HTTPStatus() int {
	switch e.Code {
	case CodeNoSuchBucket, CodeObjectNotFound:
		return http.StatusNotFound
	case CodeBucketNotEmpty:
		return http.StatusConflict
	case CodeBadDigest:
		return http.StatusBadRequest
	case CodeLockTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates an error of the given kind.
func New(code Code, format string, args ...any) *RACSError {
	return &RACSError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NoSuchBucket reports a missing bucket.
func NoSuchBucket(bucket string) *RACSError {
	return &RACSError{Code: CodeNoSuchBucket, Message: "no such bucket", Bucket: bucket}
}

// NotFound reports a missing object.
func NotFound(bucket, key string) *RACSError {
	return &RACSError{Code: CodeObjectNotFound, Message: "not found", Bucket: bucket, Key: key}
}

// BucketNotEmpty reports a delete of a non-empty bucket.
func BucketNotEmpty(bucket string) *RACSError {
	return &RACSError{Code: CodeBucketNotEmpty, Message: "bucket not empty", Bucket: bucket}
}

// Transient reports a backend failure that other repositories may cover.
func Transient(repo string, cause error) *RACSError {
	return &RACSError{Code: CodeBackendTransient, Message: "repository " + repo + " unavailable", Cause: cause}
}

// IsCode reports whether err carries the given kind anywhere in its chain.
func IsCode(err error, code Code) bool {
	for err != nil {
		if re, ok := err.(*RACSError); ok && re.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// StatusOf extracts the HTTP status for any error, defaulting to 500.
func StatusOf(err error) int {
	for err != nil {
		if re, ok := err.(*RACSError); ok {
			return re.HTTPStatus()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return http.StatusInternalServerError
}
