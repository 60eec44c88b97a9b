package pipeline

import (
	"fmt"

	"github.com/young1lin/docsanswer/internal/composer"
	"github.com/young1lin/docsanswer/internal/config"
	"github.com/young1lin/docsanswer/internal/fetcher"
	"github.com/young1lin/docsanswer/internal/llm"
	"github.com/young1lin/docsanswer/internal/search"
	"github.com/young1lin/docsanswer/internal/selector"
)

// FromConfig wires the production stages: the MCP search client, an
// OpenAI-compatible model shared by selector and composer, and the HTTP fetcher.
func FromConfig(cfg *config.Config, version string) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	model, err := llm.NewOpenAICompleter(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}

	return New(
		search.NewMCPClient(&cfg.Search, version, nil),
		selector.New(model),
		fetcher.New(&cfg.Fetch, nil),
		composer.New(model, cfg.Assistant.Platform),
	), nil
}
