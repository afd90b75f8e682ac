package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Temporary is implemented by errors that know whether a retry may succeed.
// Provider clients return errors that implement it (rate limits, 5xx).
type Temporary interface {
	Temporary() bool
}

// IsTransient reports whether err is worth retrying: an error in the chain
// that says it is temporary, a network timeout, a reset or refused
// connection, or a recognisable transport failure message.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var tmp Temporary
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"unexpected eof",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientStatus reports whether an HTTP status from a model provider is
// safe to retry. 529 is Anthropic's overloaded status.
func IsTransientStatus(status int) bool {
	switch status {
	case 408, 409, 429, 500, 502, 503, 504, 529:
		return true
	}
	return false
}
