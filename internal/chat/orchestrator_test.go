package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/openlegis/billchat/internal/ai"
	"github.com/openlegis/billchat/pkg/models"
)

// mockChatBackend records prompts and returns canned output.
type mockChatBackend struct {
	calls   int
	prompts []string
	reply   string
	err     error
}

func (m *mockChatBackend) Generate(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func orchestratorWith(backend ai.ChatBackend, factoryErr error) *Orchestrator {
	o := NewOrchestrator()
	o.newBackend = func(s models.AISettings) (ai.ChatBackend, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return backend, nil
	}
	return o
}

func TestRespondVerbatimWithoutContext(t *testing.T) {
	backend := &mockChatBackend{reply: "hello"}
	o := orchestratorWith(backend, nil)

	got := o.Respond(context.Background(), models.AISettings{}, "What is a quorum?", "", nil)
	if got != "hello" {
		t.Errorf("Respond = %q", got)
	}
	if len(backend.prompts) != 1 || backend.prompts[0] != "What is a quorum?" {
		t.Errorf("prompt = %q, want the user message verbatim", backend.prompts)
	}
}

func TestRespondBuildsGroundedPrompt(t *testing.T) {
	backend := &mockChatBackend{reply: "grounded answer"}
	o := orchestratorWith(backend, nil)

	chunks := []models.SearchResult{
		{Chunk: models.BillChunk{ID: 0, Text: "the grant program text", Section: "Section 3"}, Similarity: 0.91234},
		{Chunk: models.BillChunk{ID: 1, Text: "the findings text"}, Similarity: 0.85},
	}
	got := o.Respond(context.Background(), models.AISettings{}, "What grants exist?", "H.R. 1234: Example Act", chunks)
	if got != "grounded answer" {
		t.Errorf("Respond = %q", got)
	}

	prompt := backend.prompts[0]
	for _, want := range []string{
		"Bill overview:\nH.R. 1234: Example Act",
		"[1] (Section 3, similarity 0.912)",
		"the grant program text",
		"[2] (similarity 0.850)",
		"the findings text",
		"Question: What grants exist?",
		"Quote supporting passages",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Index(prompt, "[1]") > strings.Index(prompt, "[2]") {
		t.Error("chunks out of order in prompt")
	}
}

func TestRespondMissingCredentialHintsAtSettings(t *testing.T) {
	backend := &mockChatBackend{reply: "never reached"}
	cfgErr := &ai.ConfigurationError{Provider: ai.ProviderOpenAI, Missing: "API key"}
	o := orchestratorWith(backend, cfgErr)

	got := o.Respond(context.Background(), models.AISettings{ChatProvider: "openai"}, "hi", "", nil)
	if !strings.Contains(got, "settings") {
		t.Errorf("response %q should hint at settings", got)
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times; a missing credential must not reach the network", backend.calls)
	}
}

func TestRespondConnectivityHint(t *testing.T) {
	backend := &mockChatBackend{err: &ai.ChatProviderError{
		Provider: ai.ProviderOllama,
		Err:      &url.Error{Op: "Post", URL: "http://localhost:11434", Err: errors.New("connection refused")},
	}}
	o := orchestratorWith(backend, nil)

	got := o.Respond(context.Background(), models.AISettings{}, "hi", "", nil)
	if !strings.Contains(got, "network") {
		t.Errorf("response %q should hint at connectivity", got)
	}
}

func TestRespondOtherErrorsSurfaceRawMessage(t *testing.T) {
	backend := &mockChatBackend{err: &ai.ChatProviderError{
		Provider: ai.ProviderOpenAI,
		Err:      errors.New("model overloaded"),
	}}
	o := orchestratorWith(backend, nil)

	got := o.Respond(context.Background(), models.AISettings{}, "hi", "", nil)
	if !strings.Contains(got, "model overloaded") {
		t.Errorf("response %q should carry the raw provider message", got)
	}
}

func TestBuildPromptSimilarityFormatting(t *testing.T) {
	chunks := []models.SearchResult{
		{Chunk: models.BillChunk{Text: "x"}, Similarity: 1.0},
		{Chunk: models.BillChunk{Text: "y"}, Similarity: 0.1234567},
	}
	prompt := BuildPrompt("", chunks, "q")
	for _, want := range []string{"similarity 1.000", "similarity 0.123"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Bill overview") {
		t.Error("empty overview must not render an overview section")
	}
}

func TestBuildPromptPositionsAreOneBased(t *testing.T) {
	var chunks []models.SearchResult
	for i := 0; i < 3; i++ {
		chunks = append(chunks, models.SearchResult{
			Chunk:      models.BillChunk{ID: i, Text: fmt.Sprintf("chunk-%d", i)},
			Similarity: 0.5,
		})
	}
	prompt := BuildPrompt("overview", chunks, "q")
	for i := 1; i <= 3; i++ {
		if !strings.Contains(prompt, fmt.Sprintf("[%d] ", i)) {
			t.Errorf("prompt missing position [%d]", i)
		}
	}
	if strings.Contains(prompt, "[0]") {
		t.Error("positions must be 1-based")
	}
}
