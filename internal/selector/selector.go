package selector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/docsanswer/internal/llm"
	"github.com/young1lin/docsanswer/internal/models"
	"github.com/young1lin/docsanswer/pkg/logger"
)

// MaxURLs caps every selection.
const MaxURLs = 3

const (
	summaryChars       = 300
	selectTemperature  = 0.3
	selectMaxTokens    = 300
	selectSystemPrompt = "You rank documentation search results by how well they answer a user's question. " +
		"You reply with a JSON array of URLs and nothing else."
)

// Selector asks the model which search results deserve a full fetch.
type Selector struct {
	model llm.Completer
	log   *zap.Logger
}

// New creates a Selector backed by model.
func New(model llm.Completer) *Selector {
	return &Selector{
		model: model,
		log:   logger.Named("selector"),
	}
}

// SelectURLs returns at most MaxURLs links judged relevant to query. Every
// failure, from the model call to reply parsing, degrades to an empty slice.
func (s *Selector) SelectURLs(ctx context.Context, query, resultText string) []string {
	log := logger.For(ctx, s.log)

	items := ParseResults(resultText)
	if len(items) == 0 {
		log.Debug("no search results to select from")
		return []string{}
	}

	reply, err := s.model.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: selectSystemPrompt,
		UserPrompt:   buildPrompt(query, items),
		Temperature:  selectTemperature,
		MaxTokens:    selectMaxTokens,
	})
	if err != nil {
		log.Warn("url selection call failed", zap.Error(err))
		return []string{}
	}

	urls, err := parseSelection(reply)
	if err != nil {
		log.Warn("url selection reply not understood",
			zap.Error(err),
			zap.String("reply", reply),
		)
		return []string{}
	}

	log.Info("selected documentation pages",
		zap.Int("candidates", len(items)),
		zap.Strings("urls", urls),
	)
	return urls
}

func buildPrompt(query string, items []models.SearchResultItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User question: %s\n\n", query)
	sb.WriteString("Search results:\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. Title: %s\n", i+1, item.Title)
		fmt.Fprintf(&sb, "   URL: %s\n", item.Link)
		fmt.Fprintf(&sb, "   Summary: %s\n", summarize(item.Content))
	}
	fmt.Fprintf(&sb, "\nReturn a JSON array with at most %d URLs from the list above that are most relevant "+
		"to the question, most relevant first, for example [\"https://...\"]. "+
		"If none of the results are relevant, return [].", MaxURLs)
	return sb.String()
}

func summarize(content string) string {
	runes := []rune(content)
	if len(runes) <= summaryChars {
		return content
	}
	return string(runes[:summaryChars]) + "..."
}

// parseSelection decodes the first JSON array in reply that is empty or holds
// at least one string, so bracketed prose ahead of the answer is skipped.
func parseSelection(reply string) ([]string, error) {
	err := errors.New("no JSON array in reply")
	for i := strings.IndexByte(reply, '['); i >= 0; {
		var entries []any
		decodeErr := json.NewDecoder(strings.NewReader(reply[i:])).Decode(&entries)
		switch {
		case decodeErr != nil:
			err = fmt.Errorf("decode selection: %w", decodeErr)
		case len(entries) == 0:
			return []string{}, nil
		default:
			if urls := stringEntries(entries); len(urls) > 0 {
				return urls, nil
			}
		}

		next := strings.IndexByte(reply[i+1:], '[')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, err
}

func stringEntries(entries []any) []string {
	urls := make([]string, 0, MaxURLs)
	for _, entry := range entries {
		u, ok := entry.(string)
		if !ok || strings.TrimSpace(u) == "" {
			continue
		}
		urls = append(urls, strings.TrimSpace(u))
		if len(urls) == MaxURLs {
			break
		}
	}
	return urls
}
