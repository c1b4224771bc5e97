package client

import (
	"net/http"
	"net/http/httputil"
	"os"

	"github.com/rs/zerolog"
)

// debugTransport dumps every request and response at debug level.
//
// Enable it with IMAGESYNC_DEBUG=true (or DEBUG=true), or WithDebugLogging.
// Dumps include the bearer token and inline image payloads, so only use it
// in development.
type debugTransport struct {
	base http.RoundTripper
	log  *zerolog.Logger
}

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := dt.base
	if base == nil {
		base = http.DefaultTransport
	}
	l := dt.log
	if reqDump, err := httputil.DumpRequestOut(req, true); err == nil {
		l.Debug().Str("method", req.Method).Str("url", req.URL.String()).Str("request_dump", string(reqDump)).Msg("HTTP request")
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		l.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, err
	}

	if respDump, err := httputil.DumpResponse(resp, true); err == nil {
		l.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status_code", resp.StatusCode).Str("response_dump", string(respDump)).Msg("HTTP response")
	}
	return resp, nil
}

// debugLoggingRequested reports whether IMAGESYNC_DEBUG or DEBUG is "true".
func debugLoggingRequested() bool {
	return os.Getenv("IMAGESYNC_DEBUG") == "true" || os.Getenv("DEBUG") == "true"
}
