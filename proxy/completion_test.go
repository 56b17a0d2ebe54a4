package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/llm/provider/openai"
)

// truncatingUpstream answers with a 200 event stream that promises more bytes
// than it sends, then drops the connection.
func truncatingUpstream(partial string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		defer conn.Close()

		fmt.Fprintf(buf, "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nContent-Length: %d\r\n\r\n%s",
			len(partial)+512, partial)
		_ = buf.Flush()
	}))
}

var _ = Describe("completion mode", func() {
	var (
		upstream *httptest.Server
		received chan openai.ChatCompletionRequest
		headers  chan http.Header
		handler  http.HandlerFunc
		p        *Proxy
	)

	newProxy := func(url string) {
		p, _ = newTestProxy(Config{
			Mode:         ModeCompletion,
			UpstreamURL:  url,
			APIKey:       "sk-test",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a land analyst.",
		})
	}

	BeforeEach(func() {
		received = make(chan openai.ChatCompletionRequest, 1)
		headers = make(chan http.Header, 1)
		handler = nil
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req openai.ChatCompletionRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			received <- req
			headers <- r.Header.Clone()
			handler(w, r)
		}))
		newProxy(upstream.URL)
	})

	AfterEach(func() {
		p.Close()
		upstream.Close()
	})

	It("relays the upstream stream verbatim", func() {
		stream := ": keep-alive\n\n" + sseChunk("Vegetation ") + sseChunk("is up 15%.") + "data: [DONE]\n\n"
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Openai-Organization", "org-secret")
			flusher := w.(http.Flusher)
			for _, part := range strings.SplitAfter(stream, "\n\n") {
				_, _ = io.WriteString(w, part)
				flusher.Flush()
			}
		}

		resp, body := doChat(p, `{"prompt":"How is my farm?"}`)

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
		Expect(resp.Header.Get("Openai-Organization")).To(BeEmpty())
		Expect(body).To(Equal(stream))

		req := <-received
		Expect(req.Stream).To(BeTrue())
		Expect(req.Model).To(Equal("gpt-4o-mini"))
		Expect(req.Messages).To(Equal([]openai.ChatMessage{
			{Role: llm.RoleSystem, Content: "You are a land analyst."},
			{Role: llm.RoleUser, Content: "How is my farm?"},
		}))

		h := <-headers
		Expect(h.Get("Authorization")).To(Equal("Bearer sk-test"))
		Expect(h.Get("X-Request-Id")).To(Equal(resp.Header.Get("X-Request-Id")))
	})

	DescribeTable("relays the upstream framing byte for byte",
		func(stream string, reply string) {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = io.WriteString(w, stream)
			}

			resp, body := doChat(p, `{"prompt":"How is my farm?"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(Equal(stream))

			p.workerPool.Close()
			leaves, err := p.driver.Leaves(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(leaves).To(HaveLen(1))
			Expect(leaves[0].Bucket.ExtractText()).To(Equal(reply))
		},
		Entry("CRLF line endings",
			strings.ReplaceAll(sseChunk("NDVI ")+sseChunk("0.61"), "\n", "\r\n")+"data: [DONE]\r\n\r\n",
			"NDVI 0.61"),
		Entry("an unterminated final event",
			sseChunk("Soil ")+sseChunk("moist")+"data: [DONE]",
			"Soil moist"),
	)

	It("records the accumulated delta text", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, sseChunk("Carbon ")+sseChunk("5.2 t/ha")+"data: [DONE]\n\n")
		}

		doChat(p, `{"prompt":"carbon?"}`)
		p.workerPool.Close()

		leaves, err := p.driver.Leaves(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(leaves).To(HaveLen(1))
		Expect(leaves[0].Bucket.ExtractText()).To(Equal("Carbon 5.2 t/ha"))
		Expect(leaves[0].Bucket.Model).To(Equal("gpt-4o-mini"))
	})

	It("propagates upstream error statuses and messages", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests"}}`)
		}

		resp, body := doChat(p, `{"prompt":"hi"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusTooManyRequests))
		Expect(errorMessage(body)).To(Equal("Rate limit reached"))
	})

	It("falls back to the raw upstream body", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "overloaded")
		}

		resp, body := doChat(p, `{"prompt":"hi"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		Expect(errorMessage(body)).To(Equal("overloaded"))
	})

	It("fails with 500 and no partial body when the first event cannot be read", func() {
		truncated := truncatingUpstream(`data: {"choices":[{"delta":{"content":"Hal`)
		defer truncated.Close()
		p.Close()
		newProxy(truncated.URL)

		resp, body := doChat(p, `{"prompt":"hi"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))
		Expect(errorMessage(body)).To(Equal("failed to read upstream stream"))
		Expect(body).NotTo(ContainSubstring("Hal"))
	})

	It("returns 502 when the upstream is unreachable", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := ln.Addr().String()
		Expect(ln.Close()).To(Succeed())

		p.Close()
		newProxy("http://" + addr)

		resp, body := doChat(p, `{"prompt":"hi"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		Expect(errorMessage(body)).To(Equal("upstream request failed"))
	})

	It("truncates the client stream and records nothing on a later read failure", func() {
		truncated := truncatingUpstream(sseChunk("Land ") + `data: {"choices":[{"delta":{"content":"degr`)
		defer truncated.Close()
		p.Close()
		newProxy(truncated.URL)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go func() { _ = p.RunWithListener(ln) }()

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Post("http://"+ln.Addr().String()+chatPath, "application/json",
			strings.NewReader(`{"prompt":"risk?"}`))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		body, err := io.ReadAll(resp.Body)
		Expect(err).To(HaveOccurred())
		Expect(string(body)).To(Equal(sseChunk("Land ")))

		Expect(p.Close()).To(Succeed())
		nodes, err := p.driver.List(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(BeEmpty())
	})
})
