package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/young1lin/docsanswer/internal/config"
	"github.com/young1lin/docsanswer/internal/models"
	"github.com/young1lin/docsanswer/pkg/logger"
)

// DocSeparator joins wrapped documents in the context blob.
const DocSeparator = "\n\n---\n\n"

const acceptHeader = "text/html,application/json;q=0.9,*/*;q=0.8"

var (
	// ErrNotTextual is returned for bodies that are neither markup, text nor JSON.
	ErrNotTextual = errors.New("response body is not textual")
	// ErrEmptyDocument is returned when nothing readable is left after cleaning.
	ErrEmptyDocument = errors.New("document has no readable text")
)

// Fetcher downloads documentation pages and reduces them to plain text.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	maxChars    int
	maxBody     int64
	userAgent   string
	concurrency int
	log         *zap.Logger
}

// New creates a Fetcher. A nil httpClient uses a fresh client; the per-URL
// timeout is applied through the request context either way.
func New(cfg *config.FetchConfig, httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	f := &Fetcher{
		client:      httpClient,
		timeout:     cfg.TimeoutDuration(),
		maxChars:    cfg.MaxChars,
		maxBody:     cfg.MaxBodyBytes,
		userAgent:   cfg.UserAgent,
		concurrency: cfg.Concurrency,
		log:         logger.Named("fetcher"),
	}
	if f.timeout <= 0 {
		f.timeout = 5 * time.Second
	}
	if f.maxChars <= 0 {
		f.maxChars = 10000
	}
	if f.maxBody <= 0 {
		f.maxBody = 2 << 20
	}
	if f.concurrency <= 0 {
		f.concurrency = 1
	}
	return f
}

// FetchAll fetches every URL and joins the wrapped documents in input order.
// It reports false when urls is empty or every fetch failed.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) (string, bool) {
	if len(urls) == 0 {
		return "", false
	}
	log := logger.For(ctx, f.log)

	docs := make([]*models.FetchedDoc, len(urls))
	fetchOne := func(i int) {
		doc, err := f.Fetch(ctx, urls[i])
		if err != nil {
			log.Warn("skipping documentation page", zap.String("url", urls[i]), zap.Error(err))
			return
		}
		docs[i] = doc
	}

	if f.concurrency == 1 {
		for i := range urls {
			fetchOne(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(f.concurrency)
		for i := range urls {
			g.Go(func() error {
				fetchOne(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc != nil {
			parts = append(parts, Wrap(doc))
		}
	}

	log.Info("documentation pages fetched",
		zap.Int("requested", len(urls)),
		zap.Int("succeeded", len(parts)),
	)
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, DocSeparator), true
}

// Fetch retrieves one URL within the per-URL timeout.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*models.FetchedDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	text, err := bodyText(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, err
	}
	text = capRunes(text, f.maxChars)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	return &models.FetchedDoc{URL: url, Text: text}, nil
}

// bodyText turns a response body into plain text according to its media type.
func bodyText(contentType string, body []byte) (string, error) {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		if text, ok := jsonText(body); ok {
			return text, nil
		}
		return CollapseWhitespace(string(body)), nil
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/xhtml+xml",
		mediaType == "application/xml",
		strings.HasSuffix(mediaType, "+xml"):
		return StripMarkup(string(body)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrNotTextual, mediaType)
	}
}

// Wrap prefixes a document with the URL it came from.
func Wrap(doc *models.FetchedDoc) string {
	return fmt.Sprintf("Source: %s\n%s", doc.URL, doc.Text)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
