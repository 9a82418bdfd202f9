package askcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/bylawhq/bylaw/assistant"
	"github.com/bylawhq/bylaw/pkg/llm"
)

var _ = Describe("Ask Command", func() {
	var (
		ctx      context.Context
		upstream *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()

		// Ollama-shaped upstream: expansion for non-streaming calls,
		// a segmented reply for streaming ones.
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req llm.ChatRequest
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())

			if req.Stream == nil || !*req.Stream {
				json.NewEncoder(w).Encode(llm.ChatResponse{
					Message: llm.Message{Role: llm.RoleAssistant, Content: `["handrail height"]`},
					Done:    true,
				})
				return
			}

			for _, seg := range []string{"Handrails go ", "between 865 and 965 mm."} {
				line, _ := json.Marshal(llm.StreamChunk{Message: llm.Message{Role: llm.RoleAssistant, Content: seg}})
				fmt.Fprintf(w, "%s\n", line)
			}
			line, _ := json.Marshal(llm.StreamChunk{Done: true})
			fmt.Fprintf(w, "%s\n", line)
		}))
	})

	AfterEach(func() {
		upstream.Close()
	})

	startServer := func() (string, func()) {
		config := assistant.DefaultConfig()
		config.Upstream = upstream.URL

		srv, err := assistant.New(config, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		go func() {
			_ = srv.RunWithListener(listener)
		}()

		addr := "http://" + listener.Addr().String()

		// Wait for the accept loop before running commands against it.
		Eventually(func() error {
			resp, err := http.Get(addr + "/health")
			if err != nil {
				return err
			}
			resp.Body.Close()
			return nil
		}).Should(Succeed())

		cleanup := func() {
			srv.Shutdown()
			srv.Close()
		}
		return addr, cleanup
	}

	It("streams an answer and prints accounting", func() {
		addr, cleanup := startServer()
		defer cleanup()

		var out bytes.Buffer
		cmd := NewAskCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"--server", addr, "--plain", "how high are handrails?"})

		Expect(cmd.ExecuteContext(ctx)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Handrails go between 865 and 965 mm."))
		Expect(out.String()).To(ContainSubstring("tokens:"))
		Expect(out.String()).To(ContainSubstring("est. $"))
	})

	It("fails cleanly when no server is running", func() {
		var out bytes.Buffer
		cmd := NewAskCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"--server", "http://127.0.0.1:1", "--plain", "anything"})

		Expect(cmd.ExecuteContext(ctx)).NotTo(Succeed())
	})
})
