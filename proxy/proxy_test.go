package proxy

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/llm/provider/mock"
	"github.com/shamba-ai/shamba/proxy/header"
)

var _ = Describe("Proxy", func() {
	Describe("New", func() {
		It("defaults to mock mode", func() {
			p, _ := newTestProxy(Config{})
			defer p.Close()
			Expect(p.Mode()).To(Equal(ModeMock))
		})

		It("rejects an unknown mode", func() {
			_, err := New(Config{Mode: "psychic"}, nil, nil)
			Expect(err).To(MatchError(ContainSubstring("unknown proxy mode")))
		})

		It("requires a storage driver", func() {
			_, err := New(Config{Mode: ModeMock}, nil, nil)
			Expect(err).To(MatchError(ContainSubstring("worker pool")))
		})
	})

	Describe("GET /health", func() {
		It("reports ok", func() {
			p, _ := newTestProxy(Config{})
			defer p.Close()

			req, _ := http.NewRequest(http.MethodGet, "/health", nil)
			resp, err := p.server.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("mock mode", func() {
		var (
			p *Proxy
		)

		BeforeEach(func() {
			p, _ = newTestProxy(Config{Mode: ModeMock})
		})

		AfterEach(func() {
			p.Close()
		})

		It("answers with one canned reply as plain text", func() {
			resp, body := doChat(p, `{"prompt":"How green is my farm?"}`)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal(textPlain))
			Expect(resp.Header.Get(header.RequestIDHeader)).NotTo(BeEmpty())
			Expect(mock.Responses()).To(ContainElement(body))
		})

		It("returns every canned reply over many requests", func() {
			seen := map[string]int{}
			for range 150 {
				_, body := doChat(p, `{"prompt":"hi","thread_id":null}`)
				seen[body]++
			}

			Expect(seen).To(HaveLen(len(mock.Responses())))
			for _, r := range mock.Responses() {
				Expect(seen).To(HaveKey(r))
			}
		})

		It("records the turn", func() {
			_, body := doChat(p, `{"prompt":"hello"}`)
			p.workerPool.Close()

			nodes, err := p.driver.List(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(2))
			Expect(nodes[0].Bucket.ExtractText()).To(Equal("hello"))
			Expect(nodes[1].Bucket.ExtractText()).To(Equal(body))
			Expect(nodes[1].Bucket.Provider).To(Equal(mock.ProviderName))
		})
	})

	Describe("request validation", func() {
		var p *Proxy

		BeforeEach(func() {
			// Completion mode without a key: validation must fail first.
			p, _ = newTestProxy(Config{Mode: ModeCompletion, UpstreamURL: "http://127.0.0.1:1"})
		})

		AfterEach(func() {
			p.Close()
		})

		DescribeTable("rejects malformed bodies with 400",
			func(body, message string) {
				resp, out := doChat(p, body)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))
				Expect(errorMessage(out)).To(Equal(message))
			},
			Entry("not JSON", `prompt=hi`, "request body must be a JSON object"),
			Entry("JSON array", `["hi"]`, "request body must be a JSON object"),
			Entry("JSON null", `null`, "request body must be a JSON object"),
			Entry("missing prompt", `{"thread_id":"t"}`, "prompt is required"),
			Entry("null prompt", `{"prompt":null}`, "prompt is required"),
			Entry("numeric prompt", `{"prompt":42}`, "prompt must be a string"),
			Entry("numeric thread id", `{"prompt":"hi","thread_id":7}`, "thread_id must be a string or null"),
			Entry("object thread id", `{"prompt":"hi","thread_id":{}}`, "thread_id must be a string or null"),
		)

		It("fails with a configuration error once the body is valid", func() {
			resp, out := doChat(p, `{"prompt":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(errorMessage(out)).To(Equal("OPENAI_API_KEY is not set"))
		})
	})

	Describe("panics", func() {
		It("are recovered into a generic 500", func() {
			p, _ := newTestProxy(Config{})
			defer p.Close()
			p.server.Get("/boom", func(*fiber.Ctx) error {
				panic("secret detail")
			})

			req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
			resp, err := p.server.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			var e llm.ErrorResponse
			Expect(decodeJSON(resp, &e)).To(Succeed())
			Expect(e.Error).To(Equal(internalErrorMessage))
		})
	})
})
