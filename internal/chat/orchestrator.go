package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/openlegis/billchat/internal/ai"
	"github.com/openlegis/billchat/pkg/models"
)

// Orchestrator assembles grounded prompts and dispatches them to the
// chat backend selected by the caller's settings. It always produces
// text: provider failures are converted into human-readable responses
// here and never propagate to the UI.
type Orchestrator struct {
	newBackend func(models.AISettings) (ai.ChatBackend, error)
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{newBackend: ai.NewChatBackend}
}

// Respond answers userMessage. With no bill context and no chunks the
// message goes to the model verbatim; otherwise it is wrapped in a
// grounded prompt built from the overview and the retrieved chunks.
func (o *Orchestrator) Respond(ctx context.Context, settings models.AISettings, userMessage, billContext string, chunks []models.SearchResult) string {
	backend, err := o.newBackend(settings)
	if err != nil {
		return responseForError(err)
	}

	prompt := userMessage
	if billContext != "" || len(chunks) > 0 {
		prompt = BuildPrompt(billContext, chunks, userMessage)
	}

	text, err := backend.Generate(ctx, prompt)
	if err != nil {
		return responseForError(err)
	}
	return text
}

// BuildPrompt renders the grounded prompt: bill overview, the
// retrieved chunks in ranked order with 1-based positions, optional
// section labels and similarity to three decimals, then the question
// and the grounding instruction.
func BuildPrompt(billContext string, chunks []models.SearchResult, userMessage string) string {
	var b strings.Builder
	b.WriteString("You are an assistant answering questions about a United States Congressional bill.\n\n")

	if billContext != "" {
		b.WriteString("Bill overview:\n")
		b.WriteString(billContext)
		b.WriteString("\n\n")
	}

	if len(chunks) > 0 {
		b.WriteString("Relevant sections from the bill text:\n\n")
		for i, r := range chunks {
			if r.Chunk.Section != "" {
				fmt.Fprintf(&b, "[%d] (%s, similarity %.3f)\n", i+1, r.Chunk.Section, r.Similarity)
			} else {
				fmt.Fprintf(&b, "[%d] (similarity %.3f)\n", i+1, r.Similarity)
			}
			b.WriteString(r.Chunk.Text)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("Question: ")
	b.WriteString(userMessage)
	b.WriteString("\n\nAnswer the question using the bill text above. Quote supporting passages where possible.")
	return b.String()
}

// responseForError maps a pipeline failure to the text shown in the
// conversation. Configuration problems get a settings hint,
// connectivity problems a connectivity hint, everything else the raw
// message.
func responseForError(err error) string {
	var cfgErr *ai.ConfigurationError
	if errors.As(err, &cfgErr) {
		return fmt.Sprintf("The AI provider is not configured: %v. Open your settings and add the missing credential or endpoint.", cfgErr)
	}
	if isConnectivity(err) {
		return fmt.Sprintf("Could not reach the AI provider: %v. Check your network connection and that the configured endpoint is running.", err)
	}
	return err.Error()
}

func isConnectivity(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host")
}
