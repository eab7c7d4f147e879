package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/kailas-cloud/tagsearch/internal/domain"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/query"
	domstage "github.com/kailas-cloud/tagsearch/internal/domain/stage"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
)

func boosts(kv ...any) []domstage.Boost {
	out := make([]domstage.Boost, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, domstage.Boost{Key: kv[i].(string), Value: kv[i+1].(float64)})
	}
	return out
}

func TestMatch_ZeroTagsIsNoMatch(t *testing.T) {
	products := &fakeProducts{totals: []int{10}}
	svc := New(products, mustStages(t, domstage.Definition{Name: "loose"}), defaultOpts)

	_, err := svc.Match(context.Background(), nil, filter.Attributes{}, 1, 20)
	if !errors.Is(err, domain.ErrNoSemanticMatch) {
		t.Fatalf("expected ErrNoSemanticMatch, got %v", err)
	}
	if len(products.calls) != 0 {
		t.Errorf("expected no search calls, got %d", len(products.calls))
	}
}

func TestMatch_InvalidPage(t *testing.T) {
	svc := New(&fakeProducts{}, mustStages(t, domstage.Definition{Name: "loose"}), defaultOpts)
	_, err := svc.Match(context.Background(), []domtag.Recognized{domtag.NewUnrecognised("x")}, filter.Attributes{}, 0, 20)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestMatch_GateSkipsStageWithoutQuery(t *testing.T) {
	products := &fakeProducts{totals: []int{3}}
	stages := mustStages(t,
		domstage.Definition{Name: "exact", Fields: boosts("name.text", 1.0), MinMatchPercent: 1.0},
		domstage.Definition{Name: "partial", Fields: boosts("name.text", 1.0), MinMatchPercent: 0.5},
	)
	svc := New(products, stages, defaultOpts)

	tags := []domtag.Recognized{
		exact("iphone", "name", domtag.TypeText, "iphone"),
		domtag.NewUnrecognised("pro"),
	}
	res, err := svc.Match(context.Background(), tags, filter.Attributes{}, 1, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != "partial" || res.Total != 3 {
		t.Errorf("expected partial/3, got %s/%d", res.Stage, res.Total)
	}
	if len(products.calls) != 1 {
		t.Fatalf("expected 1 search call, got %d", len(products.calls))
	}

	want := query.DisMax{TieBreaker: 0.5, Clauses: []query.Node{
		query.DisMax{TieBreaker: 0.2, Clauses: []query.Node{
			query.Term{Field: "name.text", Value: "iphone", Boost: 1},
		}},
		query.Match{Fields: []string{"name.text"}, Terms: []string{"pro"}},
	}}
	if !reflect.DeepEqual(products.calls[0].q, want) {
		t.Errorf("query mismatch:\n got  %#v\n want %#v", products.calls[0].q, want)
	}
}

func TestMatch_StageGateOnResolvedGroups(t *testing.T) {
	products := &fakeProducts{totals: []int{1}}
	stages := mustStages(t,
		// Both tags are recognized, but only brand resolves here: 1 of 2 groups.
		domstage.Definition{Name: "brand_only", Fields: boosts("brand_name.concept", 2.0), MinMatchPercent: 0.6},
		domstage.Definition{Name: "all", Fields: boosts("brand_name.concept", 2.0, "name.text", 1.0)},
	)
	svc := New(products, stages, defaultOpts)

	tags := []domtag.Recognized{
		exact("Apple", "brand_name", domtag.TypeConcept, "apple"),
		exact("iphone", "name", domtag.TypeText, "iphone"),
	}
	res, err := svc.Match(context.Background(), tags, filter.Attributes{}, 1, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != "all" {
		t.Errorf("expected stage all, got %s", res.Stage)
	}
	// The only search call is the one for "all": "brand_only" was never queried.
	if len(products.calls) != 1 {
		t.Errorf("expected 1 search call, got %d", len(products.calls))
	}
}

func TestMatch_CascadeShortCircuits(t *testing.T) {
	products := &fakeProducts{totals: []int{0, 5, 7}}
	stages := mustStages(t,
		domstage.Definition{Name: "first", Fields: boosts("name.text", 3.0)},
		domstage.Definition{Name: "second", Fields: boosts("name.text", 2.0)},
		domstage.Definition{Name: "third", Fields: boosts("name.text", 1.0)},
	)
	svc := New(products, stages, defaultOpts)

	tags := []domtag.Recognized{exact("shoe", "name", domtag.TypeText, "shoe")}
	res, err := svc.Match(context.Background(), tags, filter.Attributes{}, 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stage != "second" || res.Total != 5 || len(res.Products) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(products.calls) != 2 {
		t.Fatalf("expected 2 search calls, got %d", len(products.calls))
	}
	if c := products.calls[1]; c.offset != 10 || c.limit != 10 {
		t.Errorf("expected offset 10 limit 10, got %d/%d", c.offset, c.limit)
	}
}

func TestMatch_AllStagesEmpty(t *testing.T) {
	products := &fakeProducts{}
	stages := mustStages(t,
		domstage.Definition{Name: "a", Fields: boosts("name.text", 1.0)},
		domstage.Definition{Name: "b", Fields: boosts("name.text", 1.0)},
	)
	svc := New(products, stages, defaultOpts)

	_, err := svc.Match(context.Background(),
		[]domtag.Recognized{exact("shoe", "name", domtag.TypeText, "shoe")}, filter.Attributes{}, 1, 20)
	if !errors.Is(err, domain.ErrNoSemanticMatch) {
		t.Fatalf("expected ErrNoSemanticMatch, got %v", err)
	}
	if len(products.calls) != 2 {
		t.Errorf("expected 2 search calls, got %d", len(products.calls))
	}
}

func TestMatch_BackendErrorIsNotNoMatch(t *testing.T) {
	products := &fakeProducts{err: fmt.Errorf("%w: timeout", domain.ErrBackendUnavailable)}
	svc := New(products, mustStages(t, domstage.Definition{Name: "a", Fields: boosts("name.text", 1.0)}), defaultOpts)

	_, err := svc.Match(context.Background(),
		[]domtag.Recognized{exact("shoe", "name", domtag.TypeText, "shoe")}, filter.Attributes{}, 1, 20)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrNoSemanticMatch) {
		t.Error("backend failure must not read as no match")
	}
}

func TestMatch_BoostResolution(t *testing.T) {
	tests := []struct {
		name string
		def  domstage.Definition
		tag  domtag.Recognized
		want float64
	}{
		{
			name: "dynamic pattern",
			def:  domstage.Definition{Name: "s", DynamicFields: boosts(`name\..*`, 2.0)},
			tag:  exact("iphone", "name", domtag.TypeText, "iphone"),
			want: 2.0,
		},
		{
			name: "static wins over pattern",
			def: domstage.Definition{Name: "s",
				Fields: boosts("name.text", 3.0), DynamicFields: boosts(`name\..*`, 2.0)},
			tag:  exact("iphone", "name", domtag.TypeText, "iphone"),
			want: 3.0,
		},
		{
			name: "first pattern wins",
			def:  domstage.Definition{Name: "s", DynamicFields: boosts(`.*\.text`, 1.5, `name\..*`, 2.0)},
			tag:  exact("iphone", "name", domtag.TypeText, "iphone"),
			want: 1.5,
		},
		{
			name: "spellcheck halves",
			def:  domstage.Definition{Name: "s", Fields: boosts("name.text", 3.0)},
			tag:  fuzzy("iphone", "name", domtag.TypeText, "iphnoe"),
			want: 1.5,
		},
		{
			name: "attribute field is used bare",
			def:  domstage.Definition{Name: "s", DynamicFields: boosts(`attributes\..*`, 4.0)},
			tag:  exact("red", "attributes.color", domtag.TypeConcept, "red"),
			want: 4.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := &fakeProducts{totals: []int{1}}
			svc := New(products, mustStages(t, tt.def), defaultOpts)

			if _, err := svc.Match(context.Background(), []domtag.Recognized{tt.tag}, filter.Attributes{}, 1, 20); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(products.calls) != 1 {
				t.Fatalf("expected 1 search call, got %d", len(products.calls))
			}

			outer := products.calls[0].q.(query.DisMax)
			inner := outer.Clauses[0].(query.DisMax)
			term := inner.Clauses[0].(query.Term)
			if term.Field != tt.tag.FieldVariant() {
				t.Errorf("expected field %s, got %s", tt.tag.FieldVariant(), term.Field)
			}
			if math.Abs(term.Boost-tt.want) > 1e-9 {
				t.Errorf("expected boost %v, got %v", tt.want, term.Boost)
			}
		})
	}
}

func TestMatch_UnresolvedVariantContributesNothing(t *testing.T) {
	products := &fakeProducts{totals: []int{1}}
	svc := New(products, mustStages(t, domstage.Definition{Name: "s", Fields: boosts("name.text", 1.0)}), defaultOpts)

	tags := []domtag.Recognized{
		exact("iphone", "name", domtag.TypeText, "iphone"),
		exact("iphone", "category_name", domtag.TypeConcept, "iphone"),
	}
	if _, err := svc.Match(context.Background(), tags, filter.Attributes{}, 1, 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inner := products.calls[0].q.(query.DisMax).Clauses[0].(query.DisMax)
	if len(inner.Clauses) != 1 {
		t.Errorf("expected 1 variant, got %d", len(inner.Clauses))
	}
}

func TestMatch_UnindexedVariantsAreSkipped(t *testing.T) {
	stages := mustStages(t,
		domstage.Definition{Name: "exact",
			Fields:          boosts("brand_name.concept", 10.0, "name.text", 4.0),
			DynamicFields:   boosts(`attributes\..*`, 6.0),
			MinMatchPercent: 1.0},
		domstage.Definition{Name: "loose",
			Fields:        boosts("name.text", 1.0, "legacy.text", 1.0),
			DynamicFields: boosts(`.*\.text`, 0.5)},
	)
	indexed := map[string]bool{"brand_name.concept": true, "name.text": true}
	opts := defaultOpts
	opts.Indexed = func(v string) bool { return indexed[v] }

	t.Run("resolved but unindexed attribute fails the group", func(t *testing.T) {
		products := &fakeProducts{totals: []int{1, 1}}
		svc := New(products, stages, opts)
		tags := []domtag.Recognized{
			exact("Apple", "brand_name", domtag.TypeConcept, "apple"),
			exact("red", "attributes.color", domtag.TypeConcept, "red"),
			exact("iphone", "name", domtag.TypeText, "iphone"),
		}
		res, err := svc.Match(context.Background(), tags, filter.Attributes{}, 1, 20)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// exact needs every group; attributes.color is not in the index, so it falls to loose.
		if res.Stage != "loose" {
			t.Errorf("expected stage loose, got %s", res.Stage)
		}
		for _, c := range products.calls {
			for _, f := range fieldsOf(c.q) {
				if !indexed[f] {
					t.Errorf("queried unindexed field %s", f)
				}
			}
		}
	})

	t.Run("fallback fields and boost filters", func(t *testing.T) {
		products := &fakeProducts{totals: []int{1}}
		svc := New(products, stages, opts)
		filters, err := filter.NewAttributes(map[string]string{"size": "xl"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tags := []domtag.Recognized{domtag.NewUnrecognised("shoe")}
		if _, err := svc.Match(context.Background(), tags, filters, 1, 20); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := query.DisMax{TieBreaker: 0.5, Clauses: []query.Node{
			query.Match{Fields: []string{"name.text"}, Terms: []string{"shoe"}},
		}}
		if !reflect.DeepEqual(products.calls[0].q, want) {
			t.Errorf("query mismatch:\n got  %#v\n want %#v", products.calls[0].q, want)
		}
	})

	t.Run("required filter on unindexed attribute cannot hit", func(t *testing.T) {
		products := &fakeProducts{totals: []int{1}}
		required := opts
		required.FilterPolicy = filter.AsRequired
		svc := New(products, stages, required)
		filters, err := filter.NewAttributes(map[string]string{"size": "xl"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tags := []domtag.Recognized{exact("iphone", "name", domtag.TypeText, "iphone")}
		_, err = svc.Match(context.Background(), tags, filters, 1, 20)
		if !errors.Is(err, domain.ErrNoSemanticMatch) {
			t.Fatalf("expected ErrNoSemanticMatch, got %v", err)
		}
		if len(products.calls) != 0 {
			t.Errorf("expected no search calls, got %d", len(products.calls))
		}
	})
}

func TestMatch_FilterPolicies(t *testing.T) {
	filters, err := filter.NewAttributes(map[string]string{"color": "red"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags := []domtag.Recognized{exact("shoe", "name", domtag.TypeText, "shoe")}
	stages := mustStages(t, domstage.Definition{Name: "s", Fields: boosts("name.text", 1.0)})
	filterTerm := query.Term{Field: "attributes.color", Value: "red"}

	t.Run("boost", func(t *testing.T) {
		products := &fakeProducts{totals: []int{1}}
		svc := New(products, stages, defaultOpts)
		if _, err := svc.Match(context.Background(), tags, filters, 1, 20); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		outer := products.calls[0].q.(query.DisMax)
		if len(outer.Clauses) != 2 {
			t.Fatalf("expected 2 outer clauses, got %d", len(outer.Clauses))
		}
		if !reflect.DeepEqual(outer.Clauses[1], filterTerm) {
			t.Errorf("expected filter term %#v, got %#v", filterTerm, outer.Clauses[1])
		}
	})

	t.Run("required", func(t *testing.T) {
		products := &fakeProducts{totals: []int{1}}
		opts := defaultOpts
		opts.FilterPolicy = filter.AsRequired
		svc := New(products, stages, opts)
		if _, err := svc.Match(context.Background(), tags, filters, 1, 20); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		and, ok := products.calls[0].q.(query.And)
		if !ok {
			t.Fatalf("expected And query, got %T", products.calls[0].q)
		}
		if len(and.Clauses) != 2 {
			t.Fatalf("expected 2 clauses, got %d", len(and.Clauses))
		}
		if !reflect.DeepEqual(and.Clauses[1], filterTerm) {
			t.Errorf("expected filter term %#v, got %#v", filterTerm, and.Clauses[1])
		}
		if n := len(and.Clauses[0].(query.DisMax).Clauses); n != 1 {
			t.Errorf("expected 1 disjunct, got %d", n)
		}
	})
}

func TestMatch_NothingResolvesSkipsStage(t *testing.T) {
	products := &fakeProducts{totals: []int{1}}
	// Gate 0 but no static fields and no patterns: there is nothing to query.
	svc := New(products, mustStages(t, domstage.Definition{Name: "empty"}), defaultOpts)

	_, err := svc.Match(context.Background(),
		[]domtag.Recognized{exact("shoe", "name", domtag.TypeText, "shoe")}, filter.Attributes{}, 1, 20)
	if !errors.Is(err, domain.ErrNoSemanticMatch) {
		t.Fatalf("expected ErrNoSemanticMatch, got %v", err)
	}
	if len(products.calls) != 0 {
		t.Errorf("expected no search calls, got %d", len(products.calls))
	}
}
