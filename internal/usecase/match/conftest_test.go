package match

import (
	"context"
	"testing"

	domproduct "github.com/kailas-cloud/tagsearch/internal/domain/product"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/query"
	domstage "github.com/kailas-cloud/tagsearch/internal/domain/stage"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
)

type searchCall struct {
	q      query.Node
	offset int
	limit  int
}

// fakeProducts answers the n-th search with totals[n] hits (0 past the end).
type fakeProducts struct {
	totals []int
	err    error
	calls  []searchCall
}

func (f *fakeProducts) Search(_ context.Context, _ string, q query.Node, offset, limit int) (domproduct.Page, error) {
	n := len(f.calls)
	f.calls = append(f.calls, searchCall{q: q, offset: offset, limit: limit})
	if f.err != nil {
		return domproduct.Page{}, f.err
	}
	total := 0
	if n < len(f.totals) {
		total = f.totals[n]
	}
	page := domproduct.Page{Total: total}
	if total > 0 {
		page.Products = []domproduct.Product{{ProductID: "p1", Name: "iPhone 13"}}
	}
	return page, nil
}

func mustStages(t *testing.T, defs ...domstage.Definition) domstage.Config {
	t.Helper()
	cfg, err := domstage.NewConfig(defs)
	if err != nil {
		t.Fatalf("stage config: %v", err)
	}
	return cfg
}

func exact(tag, field string, typ domtag.Type, token string) domtag.Recognized {
	return domtag.Recognized{
		Document:      domtag.NewDocument(tag, field, typ),
		OriginalToken: token,
		MatchType:     domtag.MatchExact,
	}
}

func fuzzy(tag, field string, typ domtag.Type, token string) domtag.Recognized {
	r := exact(tag, field, typ, token)
	r.MatchType = domtag.MatchSpellcheck
	return r
}

var defaultOpts = Options{OuterTieBreaker: 0.5, InnerTieBreaker: 0.2}

// fieldsOf lists every field variant a query tree references.
func fieldsOf(n query.Node) []string {
	switch q := n.(type) {
	case query.Term:
		return []string{q.Field}
	case query.Match:
		return q.Fields
	case query.DisMax:
		var out []string
		for _, c := range q.Clauses {
			out = append(out, fieldsOf(c)...)
		}
		return out
	case query.And:
		var out []string
		for _, c := range q.Clauses {
			out = append(out, fieldsOf(c)...)
		}
		return out
	}
	return nil
}
