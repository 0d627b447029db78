package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
)

// StatusCoder is implemented by errors carrying a remote status code.
type StatusCoder interface {
	StatusCode() int
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that no classifier retries it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// IsTransient treats connection failures, timeouts and server-side (>= 500)
// statuses as transient.
func IsTransient(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode() >= 500
	}
	return isNetworkError(err)
}

// IsServerError classifies by HTTP status only: >= 500 is transient, any other
// status is permanent. Errors without a status are classified by IsTransient.
func IsServerError(err error) bool {
	if IsPermanent(err) {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode() >= 500
	}
	return IsTransient(err)
}

func isNetworkError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// a connection dropped mid-response surfaces as EOF inside *url.Error
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return errors.Is(uerr.Err, io.EOF) || errors.Is(uerr.Err, io.ErrUnexpectedEOF)
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
