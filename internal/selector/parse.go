package selector

import (
	"strings"

	"github.com/young1lin/docsanswer/internal/models"
)

const (
	titlePrefix   = "Title:"
	linkPrefix    = "Link:"
	contentPrefix = "Content:"
)

// resultParser accumulates one item at a time. A Title line commits the
// current item and opens a new one; finish commits whatever is left.
type resultParser struct {
	current   models.SearchResultItem
	open      bool
	committed []models.SearchResultItem
}

func (p *resultParser) line(line string) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, titlePrefix):
		p.flush()
		p.current = models.SearchResultItem{Title: value(line, titlePrefix)}
		p.open = true
	case !p.open:
		// Link and Content lines before the first title have no owner.
	case strings.HasPrefix(line, linkPrefix):
		p.current.Link = value(line, linkPrefix)
	case strings.HasPrefix(line, contentPrefix):
		p.current.Content = value(line, contentPrefix)
	}
}

func (p *resultParser) flush() {
	if p.open && p.current.Title != "" {
		p.committed = append(p.committed, p.current)
	}
	p.current = models.SearchResultItem{}
	p.open = false
}

func (p *resultParser) finish() []models.SearchResultItem {
	p.flush()
	return p.committed
}

func value(line, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, prefix))
}

// ParseResults splits documentation-search text into result items. Items
// without a title are dropped.
func ParseResults(text string) []models.SearchResultItem {
	var p resultParser
	for _, line := range strings.Split(text, "\n") {
		p.line(line)
	}
	return p.finish()
}
