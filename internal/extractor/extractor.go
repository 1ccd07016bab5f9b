// Package extractor turns a rendered showcase listing into Project records.
package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/metrics"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/showcase"
)

// Selectors for the showcase card layout.
const (
	CandidateSelector     = `a[href^="/showcase/"]:has(h2)`
	NameSelector          = `h2.text-2xl`
	DescriptionSelector   = `p.text-sm`
	EventSelector         = `div[class*="bg-purple-300"]`
	EventFallbackSelector = `div[class*="border-2 rounded-full"]`
	PrizeSelector         = `span.inline-flex.items-center.-space-x-2 img[alt="prize"]`
)

// Field names used in logs and metrics.
const (
	FieldLink        = "link"
	FieldName        = "name"
	FieldDescription = "description"
	FieldEvent       = "event"
	FieldPrizes      = "prizes"
)

var errResolverPanic = errors.New("field resolver panicked")

// fieldResolver fills one field of a project from its card. Resolvers run in
// isolation: an error or panic in one leaves the others untouched.
type fieldResolver struct {
	field   string
	resolve func(card *goquery.Selection, p *showcase.Project) error
}

// Extractor implements showcase.Extractor with goquery.
type Extractor struct {
	origin    string
	resolvers []fieldResolver
	logger    *zap.Logger
	metrics   *metrics.Recorder
}

// New builds an Extractor. origin is prefixed to relative card links, e.g.
// "https://ethglobal.com".
func New(origin string, logger *zap.Logger, rec *metrics.Recorder) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		origin:  strings.TrimRight(origin, "/"),
		logger:  logger,
		metrics: rec,
	}
	e.resolvers = []fieldResolver{
		{field: FieldLink, resolve: e.resolveLink},
		{field: FieldName, resolve: resolveName},
		{field: FieldDescription, resolve: resolveDescription},
		{field: FieldEvent, resolve: resolveEvent},
		{field: FieldPrizes, resolve: resolvePrizes},
	}
	return e
}

// Extract parses the content and returns one record per candidate card, in
// document order. Unparseable HTML is logged and yields an empty slice.
func (e *Extractor) Extract(content showcase.Content) []showcase.Project {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content.HTML))
	if err != nil {
		e.logger.Warn("Failed to parse listing HTML",
			zap.Int("page", content.Page),
			zap.String("url", content.URL),
			zap.Error(err),
		)
		return []showcase.Project{}
	}

	cards := doc.Find(CandidateSelector)
	projects := make([]showcase.Project, 0, cards.Length())
	cards.Each(func(i int, card *goquery.Selection) {
		projects = append(projects, e.extractCard(content, i, card))
	})
	return projects
}

func (e *Extractor) extractCard(content showcase.Content, index int, card *goquery.Selection) showcase.Project {
	p := showcase.NewProject()
	for _, r := range e.resolvers {
		err := runResolver(r, card, &p)
		if err == nil {
			continue
		}
		if r.field == FieldName {
			p.Name = showcase.NameRetrievalFailed
		}
		e.metrics.ObserveFieldFailure(r.field)
		e.logger.Warn("Failed to extract field; keeping partial record",
			zap.Int("page", content.Page),
			zap.Int("index", index),
			zap.String("field", r.field),
			zap.Error(err),
		)
	}
	return p
}

func runResolver(r fieldResolver, card *goquery.Selection, p *showcase.Project) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errResolverPanic, rec)
		}
	}()
	return r.resolve(card, p)
}

func (e *Extractor) resolveLink(card *goquery.Selection, p *showcase.Project) error {
	href, ok := card.Attr("href")
	if !ok || href == "" {
		return nil
	}
	p.Link = e.origin + href
	return nil
}

func resolveName(card *goquery.Selection, p *showcase.Project) error {
	if text, ok := firstText(card, NameSelector); ok {
		p.Name = text
	}
	return nil
}

func resolveDescription(card *goquery.Selection, p *showcase.Project) error {
	if text, ok := firstText(card, DescriptionSelector); ok {
		p.Description = text
	}
	return nil
}

func resolveEvent(card *goquery.Selection, p *showcase.Project) error {
	if text, ok := firstText(card, EventSelector); ok {
		p.Event = text
		return nil
	}
	if text, ok := firstText(card, EventFallbackSelector); ok {
		p.Event = text
	}
	return nil
}

func resolvePrizes(card *goquery.Selection, p *showcase.Project) error {
	p.SetPrizes(card.Find(PrizeSelector).Length())
	return nil
}

// firstText reports the trimmed text of the first match; ok is false when
// nothing matches.
func firstText(card *goquery.Selection, selector string) (string, bool) {
	match := card.Find(selector).First()
	if match.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(match.Text()), true
}
