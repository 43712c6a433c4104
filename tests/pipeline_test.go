package tests

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dataflow-go/flow/pkg/flow"
)

// TestURLProcessingDirectly exercises a full validate -> fetch -> measure ->
// finally Blueprint end to end, without making real HTTP requests.
func TestURLProcessingDirectly(t *testing.T) {
	urls := []string{
		"https://www.example.com",
		"https://www.test.org",
		"https://www.google.com",
		"https://www.microsoft.com",
		"https://www.micros---oft.com",
		"https://www.mic--ros---oft.com",

		"invalid-url",
		"ftp://invalid-protocol.com",
	}

	results := processURLs(urls)

	fmt.Println("Test Results:")
	for i, res := range results {
		fmt.Printf("%d. %s - %s\n", i+1, urls[i], res)
	}

	validCount, invalidCount := 0, 0
	for _, res := range results {
		if res == "invalid" {
			invalidCount++
		} else {
			validCount++
		}
	}
	fmt.Printf("\nSummary: %d valid results, %d invalid results\n", validCount, invalidCount)

	assert.Equal(t, len(urls), len(results))
	assert.Equal(t, 2, invalidCount)
}

// processURLs runs each URL through its own urlTitleLengthPipeline instance
// — one Runner per input, matching a typical per-request Flow usage rather
// than the teacher's single shared channel pipeline (see DESIGN.md).
func processURLs(urls []string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = runURLTitleLengthPipeline(u)
	}
	return out
}

// runURLTitleLengthPipeline builds and runs: validate URL shape -> await a
// (mocked) title fetch -> measure title length -> map success/error to a
// display string. Grounded on _examples/ib-77-rop3/tests/pipeline_test.go's
// TestURLProcessingDirectly, rebuilt on Blueprint/Runner instead of the
// teacher's lite.Run/core.ToChanMany channel pipeline.
func runURLTitleLengthPipeline(url string) string {
	bp := flow.New[string]()

	validated := flow.Then(bp, func(r flow.Result[string]) flow.Result[string] {
		s := r.Get()
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			return flow.Err[string](fmt.Errorf("URL must start with http:// or https://"))
		}
		return r
	})

	fetched := flow.Await(validated, flow.InlineExecutor{}, mockFetchTitleFactory)

	lengthed := flow.Transform(fetched, func(title string) int { return len(title) })

	mapped := flow.Then(lengthed, func(r flow.Result[int]) flow.Result[string] {
		if r.IsError() {
			return flow.Value("invalid")
		}
		return flow.Value(fmt.Sprintf("title length: %d", r.Get()))
	})

	end := flow.End0(mapped)

	recv := &flow.CollectingReceiver[string]{}
	flow.NewFastRunner(end).Run(context.Background(), url, recv)
	r, _ := recv.Get()
	return r.Get()
}

// mockTitleAwaitable simulates an async title-fetch backend: Submit resumes
// immediately with either a mock title or an error, without ever touching
// the network.
type mockTitleAwaitable struct {
	base *flow.AwaitableBase[string]
	url  string
}

func (m *mockTitleAwaitable) Submit() error {
	if !strings.HasPrefix(m.url, "http://") && !strings.HasPrefix(m.url, "https://") {
		m.base.Resume(flow.Err[string](fmt.Errorf("invalid URL")))
		return nil
	}
	m.base.Resume(flow.Value("Mock Page Title for " + m.url))
	return nil
}

func (m *mockTitleAwaitable) Cancel()         {}
func (m *mockTitleAwaitable) Available() bool { return true }

func mockFetchTitleFactory(_ context.Context, url string) (flow.Awaitable[string], *flow.AwaitableBase[string], error) {
	base := &flow.AwaitableBase[string]{}
	return &mockTitleAwaitable{base: base, url: url}, base, nil
}
