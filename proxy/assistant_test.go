package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shamba-ai/shamba/pkg/llm"
)

// fakeAssistants is an in-process stand-in for the threads API. Each run
// reports the scripted statuses in order, repeating the last one.
type fakeAssistants struct {
	mu        sync.Mutex
	statuses  []string
	polls     int
	threads   int
	betaSeen  bool
	reply     string
	messages  []string
	lastError string
}

func (f *fakeAssistants) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.threads++
		f.betaSeen = r.Header.Get("OpenAI-Beta") == "assistants=v2"
		f.mu.Unlock()
		writeJSON(w, map[string]any{"id": "thread_new"})
	})

	mux.HandleFunc("POST /threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.messages = append(f.messages, r.PathValue("thread")+":"+body.Content)
		f.mu.Unlock()
		writeJSON(w, map[string]any{"id": "msg_user", "role": "user"})
	})

	mux.HandleFunc("POST /threads/{thread}/runs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "run_1", "thread_id": r.PathValue("thread"), "status": "queued"})
	})

	mux.HandleFunc("GET /threads/{thread}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		i := min(f.polls, len(f.statuses)-1)
		status := f.statuses[i]
		f.polls++
		f.mu.Unlock()

		run := map[string]any{"id": r.PathValue("run"), "thread_id": r.PathValue("thread"), "status": status}
		if f.lastError != "" {
			run["last_error"] = map[string]any{"code": "server_error", "message": f.lastError}
		}
		writeJSON(w, run)
	})

	mux.HandleFunc("GET /threads/{thread}/messages", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"data": []map[string]any{
			{"id": "msg_old", "role": "assistant", "created_at": 100, "content": "stale answer"},
			{"id": "msg_new", "role": "assistant", "created_at": 200, "content": []map[string]any{
				{"type": "text", "text": map[string]any{"value": f.reply, "annotations": []any{}}},
				{"type": "image_file", "image_file": map[string]any{"file_id": "file_1"}},
			}},
			{"id": "msg_user", "role": "user", "created_at": 300, "content": "the prompt"},
		}})
	})

	return mux
}

var _ = Describe("assistant mode", func() {
	var (
		fake     *fakeAssistants
		upstream *httptest.Server
		p        *Proxy
		config   Config
	)

	BeforeEach(func() {
		fake = &fakeAssistants{
			statuses: []string{"queued", "in_progress", "completed"},
			reply:    "NDVI rose in **3 zones**.",
		}
		upstream = httptest.NewServer(fake.handler())
		config = Config{
			Mode:            ModeAssistant,
			UpstreamURL:     upstream.URL,
			APIKey:          "sk-test",
			AssistantID:     "asst_1",
			PollInterval:    5 * time.Millisecond,
			MaxPollAttempts: 10,
		}
	})

	JustBeforeEach(func() {
		p, _ = newTestProxy(config)
	})

	AfterEach(func() {
		p.Close()
		upstream.Close()
	})

	It("emits the newest assistant reply once with the thread id", func() {
		resp, body := doChat(p, `{"prompt":"What changed?","thread_id":null}`)

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(Equal(textPlain))
		Expect(resp.Header.Get(llm.ThreadIDHeader)).To(Equal("thread_new"))
		Expect(body).To(Equal("NDVI rose in **3 zones**."))

		Expect(fake.threads).To(Equal(1))
		Expect(fake.betaSeen).To(BeTrue())
		Expect(fake.polls).To(Equal(3))
		Expect(fake.messages).To(Equal([]string{"thread_new:What changed?"}))
	})

	It("reuses a supplied thread", func() {
		resp, _ := doChat(p, `{"prompt":"And now?","thread_id":"thread_abc"}`)

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get(llm.ThreadIDHeader)).To(Equal("thread_abc"))
		Expect(fake.threads).To(BeZero())
		Expect(fake.messages).To(Equal([]string{"thread_abc:And now?"}))
	})

	It("records threaded turns on one chain", func() {
		doChat(p, `{"prompt":"first","thread_id":"thread_abc"}`)
		fake.mu.Lock()
		fake.polls = 0
		fake.mu.Unlock()
		doChat(p, `{"prompt":"second","thread_id":"thread_abc"}`)
		p.workerPool.Close()

		roots, err := p.driver.Roots(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(roots).To(HaveLen(1))

		leaves, err := p.driver.Leaves(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(leaves).To(HaveLen(1))

		depth, err := p.driver.Depth(context.Background(), leaves[0].Hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(depth).To(Equal(3))
	})

	Context("when the run fails", func() {
		BeforeEach(func() {
			fake.statuses = []string{"in_progress", "failed"}
			fake.lastError = "model overloaded"
		})

		It("returns 502 with the run status", func() {
			resp, body := doChat(p, `{"prompt":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(errorMessage(body)).To(ContainSubstring(`"failed"`))
			Expect(errorMessage(body)).To(ContainSubstring("model overloaded"))
		})
	})

	Context("when the run never completes", func() {
		BeforeEach(func() {
			fake.statuses = []string{"in_progress"}
			config.MaxPollAttempts = 3
		})

		It("returns 504", func() {
			resp, body := doChat(p, `{"prompt":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusGatewayTimeout))
			Expect(errorMessage(body)).To(Equal("assistant run did not complete in time"))
			Expect(fake.polls).To(Equal(3))
		})
	})

	Context("when the run outlasts the request deadline", func() {
		BeforeEach(func() {
			fake.statuses = []string{"in_progress"}
			config.PollInterval = 20 * time.Millisecond
			config.MaxPollAttempts = 1000
			config.RunTimeout = 100 * time.Millisecond
		})

		It("stops polling and returns 504", func() {
			resp, body := doChat(p, `{"prompt":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusGatewayTimeout))
			Expect(errorMessage(body)).To(Equal("assistant run did not complete in time"))

			fake.mu.Lock()
			defer fake.mu.Unlock()
			Expect(fake.polls).To(BeNumerically("<", 20))
		})
	})

	It("derives the run deadline from the poll budget", func() {
		Expect(p.config.RunTimeout).To(Equal(10*5*time.Millisecond + runTimeoutMargin))
	})

	Context("without an assistant id", func() {
		BeforeEach(func() {
			config.AssistantID = ""
		})

		It("returns a configuration error before calling the provider", func() {
			resp, body := doChat(p, `{"prompt":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(errorMessage(body)).To(Equal("OPENAI_ASSISTANT_ID is not set"))
			Expect(fake.threads).To(BeZero())
		})
	})
})
