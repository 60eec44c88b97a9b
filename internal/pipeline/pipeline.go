package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/young1lin/docsanswer/internal/models"
	"github.com/young1lin/docsanswer/pkg/logger"
)

// Searcher queries the documentation service. An error means it was unreachable.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// URLSelector picks the result pages worth fetching.
type URLSelector interface {
	SelectURLs(ctx context.Context, query, resultText string) []string
}

// DocFetcher turns URLs into one context blob; false means nothing was fetched.
type DocFetcher interface {
	FetchAll(ctx context.Context, urls []string) (string, bool)
}

// AnswerComposer writes the final answer; an empty docContext is ungrounded.
type AnswerComposer interface {
	Compose(ctx context.Context, message, docContext string) (string, error)
}

// State is a step of one pipeline run.
type State int

const (
	StateSearching State = iota
	StateSelecting
	StateFetching
	StateComposing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "SEARCHING"
	case StateSelecting:
		return "SELECTING"
	case StateFetching:
		return "FETCHING"
	case StateComposing:
		return "COMPOSING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of a run together with how its context was built.
type Result struct {
	Answer        string
	Context       string
	ContextSource models.ContextSource
	SearchText    string
	SelectedURLs  []string
	States        []State
}

// Pipeline answers one question per Run and holds no per-request state, so a
// single value can serve concurrent requests.
type Pipeline struct {
	searcher Searcher
	selector URLSelector
	fetcher  DocFetcher
	composer AnswerComposer
	log      *zap.Logger
}

// New assembles a pipeline from its four stages.
func New(searcher Searcher, selector URLSelector, fetcher DocFetcher, composer AnswerComposer) *Pipeline {
	return &Pipeline{
		searcher: searcher,
		selector: selector,
		fetcher:  fetcher,
		composer: composer,
		log:      logger.Named("pipeline"),
	}
}

// Run drives SEARCHING → SELECTING → FETCHING → COMPOSING → DONE, jumping from
// SEARCHING straight to COMPOSING when the search service is unreachable.
// Only a composition failure is returned as an error.
func (p *Pipeline) Run(ctx context.Context, message string) (*Result, error) {
	log := logger.For(ctx, p.log)
	res := &Result{ContextSource: models.ContextNone}

	var (
		searchText string
		urls       []string
	)

	state := StateSearching
	for {
		res.States = append(res.States, state)
		log.Debug("pipeline state", zap.Stringer("state", state))

		switch state {
		case StateSearching:
			text, err := p.searcher.Search(ctx, message)
			if err != nil {
				log.Warn("documentation search unavailable, answering without documentation", zap.Error(err))
				state = StateComposing
				continue
			}
			searchText = text
			res.SearchText = text
			res.Context = text
			res.ContextSource = models.ContextSearch
			state = StateSelecting

		case StateSelecting:
			urls = p.selector.SelectURLs(ctx, message, searchText)
			res.SelectedURLs = urls
			state = StateFetching

		case StateFetching:
			if blob, ok := p.fetcher.FetchAll(ctx, urls); ok {
				res.Context = blob
				res.ContextSource = models.ContextFetched
			} else if len(urls) > 0 {
				log.Warn("no selected page could be fetched, falling back to search summaries",
					zap.Strings("urls", urls),
				)
			}
			state = StateComposing

		case StateComposing:
			answer, err := p.composer.Compose(ctx, message, res.Context)
			if err != nil {
				return res, err
			}
			res.Answer = answer
			state = StateDone

		case StateDone:
			log.Info("pipeline finished",
				zap.String("context_source", string(res.ContextSource)),
				zap.Int("selected_urls", len(res.SelectedURLs)),
				zap.Int("context_length", len(res.Context)),
			)
			return res, nil
		}
	}
}
