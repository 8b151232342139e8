package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// On decides which callback failures are worth another attempt. The tokens
// follow envoy's x-envoy-retry-on header.
type On struct {
	_5xx           bool
	gatewayError   bool
	connectFailure bool
	retriable4xx   bool
	perTryTimeout  bool
	statusCodes    []int
}

func NewDefaultRetryOn() *On {
	return &On{
		_5xx:           false,
		gatewayError:   true,
		connectFailure: true,
		retriable4xx:   true,
		perTryTimeout:  true,
		statusCodes:    []int{},
	}
}

func NewRetryOnFromString(s string) (*On, error) {
	o := &On{}
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		switch token {
		case "":
			continue
		case "5xx":
			o._5xx = true
		case "gateway-error":
			o.gatewayError = true
		case "connect-failure":
			o.connectFailure = true
		case "retriable-4xx":
			o.retriable4xx = true
		case "per-try-timeout":
			o.perTryTimeout = true
		default:
			statusCode, err := strconv.Atoi(token)
			if err != nil || statusCode < 100 || statusCode > 599 {
				return nil, xerrors.Errorf("invalid retryOn: %s", token)
			}
			o.statusCodes = append(o.statusCodes, statusCode)
		}
	}
	return o, nil
}

// copy from https://github.com/envoyproxy/envoy/blob/70d6ec1df6384118cf2fa2f02c0041edb76b2377/source/common/router/retry_state_impl.cc#L387
func (o *On) CheckResponse(response *http.Response) bool {
	if (o._5xx && response.StatusCode >= 500 && response.StatusCode < 600) ||
		(o.gatewayError && response.StatusCode >= 502 && response.StatusCode < 505) ||
		(o.retriable4xx && response.StatusCode == 409) {
		return true
	}

	for _, i := range o.statusCodes {
		if i == response.StatusCode {
			return true
		}
	}

	return false
}

// CheckError must only be given errors from an attempt whose parent context is
// still alive; the caller filters out cancellation of the whole request.
func (o *On) CheckError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return o.perTryTimeout
	}

	type temporary interface{ Temporary() bool }
	var terr temporary
	if (errors.As(err, &terr) && terr.Temporary()) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		// ref https://www.envoyproxy.io/docs/envoy/latest/configuration/http/http_filters/router_filter#:~:text=Envoy%20will%20attempt%20a%20retry%20if%20the%20upstream%20server%20responds%20with%20any%205xx%20response%20code%2C%20or%20does%20not%20respond%20at%20all%20(disconnect/reset/read%20timeout).%20(Includes%20connect%2Dfailure%20and%20refused%2Dstream)
		if o.connectFailure || o._5xx {
			return true
		}
	}
	return false
}
