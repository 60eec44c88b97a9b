package composer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/docsanswer/internal/llm"
	"github.com/young1lin/docsanswer/pkg/logger"
)

const (
	answerTemperature = 0.7
	answerMaxTokens   = 1000
)

// Composer writes the final answer.
type Composer struct {
	model    llm.Completer
	platform string
	log      *zap.Logger
}

// New creates a Composer whose persona names platform.
func New(model llm.Completer, platform string) *Composer {
	if platform == "" {
		platform = "the platform"
	}
	return &Composer{
		model:    model,
		platform: platform,
		log:      logger.Named("composer"),
	}
}

// Compose answers message. An empty docContext means the documentation
// backend could not be reached, and the prompt says so. Model failures are
// returned to the caller.
func (c *Composer) Compose(ctx context.Context, message, docContext string) (string, error) {
	answer, err := c.model.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: c.SystemPrompt(docContext),
		UserPrompt:   message,
		Temperature:  answerTemperature,
		MaxTokens:    answerMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("compose answer: %w", err)
	}

	logger.For(ctx, c.log).Info("answer composed",
		zap.Bool("grounded", docContext != ""),
		zap.Int("answer_length", len(answer)),
	)
	return answer, nil
}

// SystemPrompt builds the grounded or ungrounded instructions.
func (c *Composer) SystemPrompt(docContext string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a helpful support assistant for %s. "+
		"You answer developer questions clearly and concisely.\n\n", c.platform)

	if docContext == "" {
		sb.WriteString("IMPORTANT: The documentation search service is currently unreachable, " +
			"so no documentation could be retrieved for this question. " +
			"Tell the user plainly that you could not access the documentation backend " +
			"and that you cannot give an answer grounded in the official documentation right now. " +
			"Offer general guidance only if you are confident it is correct, and label it as such.")
		return sb.String()
	}

	sb.WriteString("Answer using the documentation below. Base your answer on this documentation, " +
		"quote it where helpful and cite the source URLs it contains. " +
		"If the documentation does not cover the question, say so instead of guessing.\n\n")
	sb.WriteString("Documentation:\n")
	sb.WriteString(docContext)
	return sb.String()
}
