package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/storage/inmemory"
)

// newTestProxy creates a Proxy backed by an in-memory driver.
func newTestProxy(config Config) (*Proxy, *inmemory.Driver) {
	driver := inmemory.NewDriver()
	p, err := New(config, driver, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return p, driver
}

func chatRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, chatPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// doChat sends body to the proxy and returns the response and its full body.
func doChat(p *Proxy, body string) (*http.Response, string) {
	resp, err := p.server.Test(chatRequest(body), -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, string(data)
}

func errorMessage(body string) string {
	var e llm.ErrorResponse
	Expect(json.Unmarshal([]byte(body), &e)).To(Succeed())
	return e.Error
}

// sseChunk renders a completion stream event carrying one content delta.
func sseChunk(content string) string {
	data, _ := json.Marshal(map[string]any{
		"object": "chat.completion.chunk",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]any{"content": content}},
		},
	})
	return "data: " + string(data) + "\n\n"
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}
