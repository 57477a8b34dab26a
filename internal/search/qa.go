package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/your-org/photostack/internal/errs"
	"github.com/your-org/photostack/internal/models"
	"github.com/your-org/photostack/internal/observability"
	"github.com/your-org/photostack/internal/oracle"
)

// NoRelevantImagesAnswer is returned, without calling the language model,
// when retrieval finds nothing to ground an answer on.
const NoRelevantImagesAnswer = "I could not find any relevant images in your library for that question."

const maxContextTextLen = 1500

// TextSearcher is the retrieval step the answerer builds its context from.
type TextSearcher interface {
	SearchText(ctx context.Context, query string, spec *models.FilterSpec, topK *int) ([]models.MatchResult, error)
}

// QAResult is a synthesized answer together with the matches that grounded
// it. Raw keeps the unprocessed model output for debugging.
type QAResult struct {
	Answer  string
	Matches []models.MatchResult
	Raw     string
}

// Answerer runs retrieval-grounded question answering: similarity search
// first, then a language model constrained to the retrieved records.
type Answerer struct {
	searcher TextSearcher
	gen      oracle.Generator
	model    string
	topK     int
	logger   *slog.Logger
}

func NewAnswerer(searcher TextSearcher, gen oracle.Generator, model string, topK int, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{searcher: searcher, gen: gen, model: model, topK: topK, logger: logger}
}

// Answer retrieves the records most similar to the question and asks the
// language model to answer using only those. topK nil means the configured
// retrieval depth; explicit values go through the searcher's usual bounds.
// Zero matches short-circuits to a fixed answer; a model failure after
// successful retrieval comes back as a SynthesisError so the caller still
// has the matches.
func (a *Answerer) Answer(ctx context.Context, question string, spec *models.FilterSpec, topK *int) (*QAResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errs.Validation("question must not be empty")
	}

	if topK == nil {
		topK = &a.topK
	}
	matches, err := a.searcher.SearchText(ctx, question, spec, topK)
	if err != nil {
		return nil, err
	}

	observability.SearchesTotal.WithLabelValues("qa").Inc()

	if len(matches) == 0 {
		return &QAResult{
			Answer:  NoRelevantImagesAnswer,
			Matches: []models.MatchResult{},
		}, nil
	}

	raw, err := a.gen.Generate(ctx, a.model, buildQAPrompt(question, matches))
	if err != nil {
		a.logger.Warn("answer synthesis failed", "question", question, "error", err)
		return &QAResult{Matches: matches}, &errs.SynthesisError{Err: err}
	}

	return &QAResult{
		Answer:  strings.TrimSpace(raw),
		Matches: matches,
		Raw:     raw,
	}, nil
}

// buildQAPrompt renders one context block per match, in ranked order, ahead
// of the question.
func buildQAPrompt(question string, matches []models.MatchResult) string {
	var b strings.Builder
	b.WriteString("You are answering a question about the user's personal image library.\n")
	b.WriteString("Use ONLY the image records below. If they do not contain the answer, say so.\n")
	b.WriteString("When your answer comes from a specific image, mention its number.\n\n")

	for i, m := range matches {
		fmt.Fprintf(&b, "--- IMAGE %d ---\n", i+1)
		fmt.Fprintf(&b, "filename: %s\n", m.Filename)
		if m.Category != nil {
			fmt.Fprintf(&b, "category: %s\n", *m.Category)
		}
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, "tags: %s\n", strings.Join(m.Tags, ", "))
		}
		if m.OCRText != nil {
			text := *m.OCRText
			if len(text) > maxContextTextLen {
				text = text[:maxContextTextLen]
			}
			fmt.Fprintf(&b, "text on image:\n%s\n", text)
		}
		b.WriteString("\n")
	}

	b.WriteString("QUESTION: ")
	b.WriteString(question)
	b.WriteString("\n\nANSWER:")
	return b.String()
}
