// Package answer synthesizes a grounded, citation-bearing answer over
// retrieved chunks. Each chunk becomes a numbered source block in the
// prompt; the model is instructed to suffix claims with the source number
// in square brackets, and the bracketed numbers in the reply are parsed
// back into the subset of sources actually used.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/cambium-dev/docqa-go/internal/rag"
)

const systemPrompt = `You are an assistant answering questions about an organization's procedure documents. Answer strictly from the numbered source excerpts provided. Answer in the language the question was asked in.

Rules:
1. Base every claim on the provided excerpts only. Answer as fully as the question warrants.
2. After each claim, add the source number in square brackets: [1], [2], and so on.
3. If the excerpts contain no relevant information, say so plainly.
4. End the answer with a "Sources:" section listing only the sources you actually cited, one per line, as: [N] from <document> (<location>).

Use the source numbers exactly as they appear in the excerpts.`

// Source is one numbered excerpt offered to the model.
type Source struct {
	// Number is the 1-based index used in citations.
	Number int `json:"number"`

	// Title is the source document's title.
	Title string `json:"title"`

	// Locator names the page or row the excerpt came from.
	Locator string `json:"locator"`

	// Text is the excerpt body.
	Text string `json:"text"`
}

// Answer is a synthesized reply plus the sources it drew on.
type Answer struct {
	// Text is the model's reply, citations inline.
	Text string `json:"text"`

	// Sources is every excerpt offered to the model, in prompt order.
	Sources []Source `json:"sources"`

	// Used holds the numbers of the sources the reply actually cited.
	Used []int `json:"used"`
}

// Synthesizer turns retrieval results into a cited answer.
type Synthesizer struct {
	model ChatModel
	log   *slog.Logger
}

// NewSynthesizer constructs a Synthesizer.
func NewSynthesizer(m ChatModel, log *slog.Logger) (*Synthesizer, error) {
	if m == nil {
		return nil, fmt.Errorf("answer: model must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Synthesizer{model: m, log: log}, nil
}

// Answer generates a cited reply to the question over the given retrieval
// results. With no results it returns a fixed no-information answer without
// calling the model.
func (s *Synthesizer) Answer(ctx context.Context, question string, results []rag.Result) (*Answer, error) {
	sources := buildSources(results)
	if len(sources) == 0 {
		return &Answer{Text: "No relevant information was found in the indexed documents."}, nil
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildPrompt(question, sources)),
	}
	resp, err := s.model.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("answer: generation failed: %w", err)
	}
	if resp == nil || resp.Content == "" {
		return nil, fmt.Errorf("answer: model returned an empty response")
	}

	used := ExtractCitations(resp.Content, len(sources))
	s.log.Debug("answer synthesized",
		slog.Int("sources", len(sources)),
		slog.Int("cited", len(used)))
	return &Answer{Text: resp.Content, Sources: sources, Used: used}, nil
}

// buildSources numbers the retrieval results in rank order.
func buildSources(results []rag.Result) []Source {
	sources := make([]Source, 0, len(results))
	for i, r := range results {
		sources = append(sources, Source{
			Number:  i + 1,
			Title:   r.Entry.Title,
			Locator: r.Entry.Locator,
			Text:    r.Entry.Text,
		})
	}
	return sources
}

// buildPrompt renders the numbered source blocks followed by the question.
func buildPrompt(question string, sources []Source) string {
	var b strings.Builder
	b.WriteString("Source excerpts:\n\n")
	for _, src := range sources {
		fmt.Fprintf(&b, "[%d] from %s (%s):\n%s\n\n", src.Number, src.Title, src.Locator, src.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String()
}
