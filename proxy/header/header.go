// Package header provides header filtering for the shamba chat proxy.
//
// The proxy sits between a chat client and the upstream LLM provider:
//
//	Chat Client <--> Proxy <--> Upstream LLM Provider
//
// The proxy builds its own upstream requests, so only a small allowlist of
// client headers is carried upstream. Upstream response headers are copied
// back down minus anything tied to the upstream connection or account.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequestIDHeader carries the proxy's request id to the upstream provider.
const RequestIDHeader = "X-Request-Id"

// Handler manages headers between proxy connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// forwardRequest is the set of client request headers (client --> proxy --> upstream)
// that are carried onto the upstream request.
var forwardRequest = map[string]struct{}{
	"User-Agent":      {},
	"Accept-Language": {},
}

// skipResponse is the set of upstream response headers (client <-- proxy <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection":        {},
	"Keep-Alive":        {},
	"Transfer-Encoding": {},

	// Go's http.Transport strips Content-Encoding after auto-decompression.
	// Forwarding a stale value would claim an encoding the body no longer has.
	"Content-Encoding": {},

	// fasthttp computes the client-facing length (or chunks the stream).
	"Content-Length": {},

	// Upstream cookies belong to the proxy's provider account.
	"Set-Cookie": {},
}

// skipResponsePrefixes drops provider account metadata and upstream CORS
// headers; the proxy's own CORS middleware answers browsers.
var skipResponsePrefixes = []string{
	"Openai-",
	"Access-Control-",
}

// UpstreamRequestHeaders returns a copy of the forwardable client headers.
// The copy is safe to use after the fiber handler returns.
func (h *Handler) UpstreamRequestHeaders(c *fiber.Ctx) http.Header {
	out := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, ok := forwardRequest[k]; ok {
			out.Set(k, string(value))
		}
	})
	return out
}

// UpstreamRequestOption returns a request mutator that applies the forwardable
// client headers and the given request id to an outbound request.
func (h *Handler) UpstreamRequestOption(c *fiber.Ctx, requestID string) func(*http.Request) {
	headers := h.UpstreamRequestHeaders(c)
	if requestID != "" {
		headers.Set(RequestIDHeader, requestID)
	}

	return func(req *http.Request) {
		for k, v := range headers {
			req.Header[k] = v
		}
	}
}

// SetClientResponseHeaders copies response headers from the upstream API
// http.Response to the Fiber context, filtering headers that the proxy should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if skipResponseHeader(k) {
			continue
		}
		c.Set(k, strings.Join(v, ", "))
	}
}

func skipResponseHeader(key string) bool {
	if _, skip := skipResponse[key]; skip {
		return true
	}
	for _, prefix := range skipResponsePrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
