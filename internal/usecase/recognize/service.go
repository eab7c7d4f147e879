// Package recognize maps free-text query tokens onto known semantic tags.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/tagsearch/internal/domain"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
	"github.com/kailas-cloud/tagsearch/internal/logger"
	"github.com/kailas-cloud/tagsearch/internal/metrics"
)

// Options tunes the recognizer.
type Options struct {
	// FuzzyAlways issues the fuzzy lookup for every token, including tokens an exact or
	// phrase hit already consumed. Otherwise only unconsumed tokens are looked up.
	FuzzyAlways bool
	// Parallelism bounds concurrent lookups per pass. Zero means one per token.
	Parallelism int
	// MaxTokens rejects longer queries. Zero means DefaultMaxTokens.
	MaxTokens int
}

// DefaultMaxTokens caps the tokens of one query, and with it the lookups per pass.
const DefaultMaxTokens = 32

// Service recognizes tags in query strings. It holds no per-query state.
type Service struct {
	tags TagStore
	opts Options
}

// New creates a recognizer.
func New(tags TagStore, opts Options) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Service{tags: tags, opts: opts}
}

var highlightRe = regexp.MustCompile(regexp.QuoteMeta(domtag.HighlightOpen) + `(.*?)` + regexp.QuoteMeta(domtag.HighlightClose))

// ledger tracks, per token position, the best match kind seen so far.
type ledger struct {
	tokens   []string
	best     []domtag.MatchType
	consumed map[string]struct{} // case-folded words matched by exact/phrase hits
}

func newLedger(tokens []string) *ledger {
	return &ledger{
		tokens:   tokens,
		best:     make([]domtag.MatchType, len(tokens)),
		consumed: make(map[string]struct{}),
	}
}

func (l *ledger) consume(words []string) {
	for _, w := range words {
		l.consumed[strings.ToLower(w)] = struct{}{}
	}
}

// settle promotes every position whose token was consumed to EXACT.
func (l *ledger) settle() {
	for i, t := range l.tokens {
		if _, ok := l.consumed[strings.ToLower(t)]; ok {
			l.mark(i, domtag.MatchExact)
		}
	}
}

func (l *ledger) mark(i int, m domtag.MatchType) {
	if m.Rank() > l.best[i].Rank() {
		l.best[i] = m
	}
}

func (l *ledger) resolved(i int) bool { return l.best[i] != "" }

// Recognize returns the deduplicated tags for query, ordered by pass (exact, phrase,
// fuzzy, unrecognised) and then by token position. Any failed lookup fails the call.
// A query with more than MaxTokens tokens is rejected with domain.ErrInvalidRequest.
func (s *Service) Recognize(ctx context.Context, query string) ([]domtag.Recognized, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return []domtag.Recognized{}, nil
	}
	if len(tokens) > s.opts.MaxTokens {
		return nil, fmt.Errorf("%w: query has %d tokens, at most %d allowed",
			domain.ErrInvalidRequest, len(tokens), s.opts.MaxTokens)
	}
	log := logger.Component(ctx, "recognizer")
	led := newLedger(tokens)

	exactHits := make([][]domtag.Hit, len(tokens))
	var phraseHits []domtag.Hit

	err := s.run(ctx, len(tokens)+1, func(ctx context.Context, i int) error {
		if i == len(tokens) {
			hits, err := s.tags.MatchPhrase(ctx, strings.Join(tokens, " "))
			if err != nil {
				return fmt.Errorf("phrase %q: %w", query, err)
			}
			phraseHits = hits
			return nil
		}
		hits, err := s.tags.MatchToken(ctx, tokens[i])
		if err != nil {
			return fmt.Errorf("exact %q: %w", tokens[i], err)
		}
		exactHits[i] = hits
		return nil
	})
	if err != nil {
		return nil, err
	}

	var exact, phrase []domtag.Recognized
	for i, hits := range exactHits {
		for _, h := range hits {
			text, words := matched(h)
			led.consume(words)
			exact = append(exact, recognized(h.Doc, text, tokens[i], domtag.MatchExact))
		}
	}
	for _, h := range phraseHits {
		text, words := matched(h)
		led.consume(words)
		phrase = append(phrase, recognized(h.Doc, text, text, domtag.MatchExact))
	}
	led.settle()

	fuzzyPos := make([]int, 0, len(tokens))
	for i := range tokens {
		if s.opts.FuzzyAlways || !led.resolved(i) {
			fuzzyPos = append(fuzzyPos, i)
		}
	}
	fuzzyHits := make([][]domtag.Hit, len(fuzzyPos))
	err = s.run(ctx, len(fuzzyPos), func(ctx context.Context, j int) error {
		token := tokens[fuzzyPos[j]]
		hits, err := s.tags.MatchFuzzy(ctx, token)
		if err != nil {
			return fmt.Errorf("fuzzy %q: %w", token, err)
		}
		fuzzyHits[j] = hits
		return nil
	})
	if err != nil {
		return nil, err
	}

	var fuzzy []domtag.Recognized
	for j, hits := range fuzzyHits {
		i := fuzzyPos[j]
		for _, h := range hits {
			text := strip(h.Doc.Tag)
			if h.Highlighted != "" {
				text = strip(h.Highlighted)
			}
			fuzzy = append(fuzzy, recognized(h.Doc, text, tokens[i], domtag.MatchSpellcheck))
			led.mark(i, domtag.MatchSpellcheck)
		}
	}

	var unrecognised []domtag.Recognized
	for i, t := range tokens {
		if !led.resolved(i) {
			unrecognised = append(unrecognised, domtag.NewUnrecognised(t))
		}
	}

	all := make([]domtag.Recognized, 0, len(exact)+len(phrase)+len(fuzzy)+len(unrecognised))
	all = append(all, exact...)
	all = append(all, phrase...)
	all = append(all, fuzzy...)
	all = append(all, unrecognised...)
	out := domtag.Dedup(all)

	for i := range out {
		metrics.RecognizedTagsTotal.WithLabelValues(string(out[i].MatchType)).Inc()
	}
	log.Debug("tags recognized",
		zap.Int("tokens", len(tokens)),
		zap.Int("exact", len(exact)),
		zap.Int("phrase", len(phrase)),
		zap.Int("fuzzy", len(fuzzy)),
		zap.Int("unrecognised", len(unrecognised)),
		zap.Int("tags", len(out)),
	)
	return out, nil
}

// run calls fn for 0..n-1 concurrently and joins every failure.
func (s *Service) run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	if s.opts.Parallelism > 0 {
		g.SetLimit(s.opts.Parallelism)
	}
	errs := make([]error, n)
	for i := range n {
		g.Go(func() error {
			errs[i] = fn(gctx, i)
			return errs[i]
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// matched returns the hit's tag text and the words it consumes: the highlighted words
// when the store marked a sub-fragment, otherwise every word of the tag.
func matched(h domtag.Hit) (string, []string) {
	if h.Highlighted == "" {
		text := strip(h.Doc.Tag)
		return text, strings.Fields(text)
	}
	var words []string
	for _, m := range highlightRe.FindAllStringSubmatch(h.Highlighted, -1) {
		words = append(words, strings.Fields(m[1])...)
	}
	return strip(h.Highlighted), words
}

func strip(s string) string {
	s = strings.ReplaceAll(s, domtag.HighlightOpen, "")
	return strings.ReplaceAll(s, domtag.HighlightClose, "")
}

func recognized(doc domtag.Document, text, original string, m domtag.MatchType) domtag.Recognized {
	doc.Tag = text
	return domtag.Recognized{Document: doc, OriginalToken: original, MatchType: m}
}
