// Package dataset reads catalog snapshots (JSON, JSON Lines, Parquet) for tag extraction
// and product loading.
package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	domds "github.com/kailas-cloud/tagsearch/internal/domain/dataset"
	domproduct "github.com/kailas-cloud/tagsearch/internal/domain/product"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/filter"
)

// Attributes are free-form product attributes. Non-string JSON scalars are kept in
// their JSON text form (42, true).
type Attributes map[string]string

// UnmarshalJSON accepts any scalar attribute value. Nulls are dropped.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Attributes, len(raw))
	for k, v := range raw {
		s := strings.TrimSpace(string(v))
		switch {
		case s == "null":
			continue
		case strings.HasPrefix(s, `"`):
			var str string
			if err := json.Unmarshal(v, &str); err != nil {
				return fmt.Errorf("attribute %q: %w", k, err)
			}
			out[k] = str
		case strings.HasPrefix(s, "{"), strings.HasPrefix(s, "["):
			return fmt.Errorf("attribute %q: nested values are not supported", k)
		default:
			out[k] = s
		}
	}
	*a = out
	return nil
}

// Record is one catalog row as delivered by the catalog export.
type Record struct {
	ProductID      string     `json:"productId" parquet:"productId,optional"`
	Name           string     `json:"name" parquet:"name,optional"`
	BrandName      string     `json:"brandName" parquet:"brandName,optional"`
	CategoryName   string     `json:"categoryName" parquet:"categoryName,optional"`
	Price          float64    `json:"price" parquet:"price,optional"`
	Description    string     `json:"description" parquet:"description,optional"`
	SearchKeywords string     `json:"searchKeywords" parquet:"searchKeywords,optional"`
	Attributes     Attributes `json:"attributes" parquet:"attributes"`
	ReleaseDate    string     `json:"releaseDate" parquet:"releaseDate,optional"`
	Rating         float64    `json:"rating" parquet:"rating,optional"`
	Stock          int64      `json:"stock" parquet:"stock,optional"`
	Tags           []string   `json:"tags" parquet:"tags,list"`
}

// Row exposes the record under its catalog field names. Empty values are omitted.
func (r *Record) Row() domds.Row {
	row := domds.Row{}
	put := func(k, v string) {
		if v != "" {
			row[k] = v
		}
	}
	put("productId", r.ProductID)
	put("name", r.Name)
	put("brandName", r.BrandName)
	put("categoryName", r.CategoryName)
	put("description", r.Description)
	put("searchKeywords", r.SearchKeywords)
	put("releaseDate", r.ReleaseDate)
	if len(r.Tags) > 0 {
		put("tags", strings.Join(r.Tags, " "))
	}
	if len(r.Attributes) > 0 {
		row["attributes"] = map[string]string(r.Attributes)
	}
	return row
}

// Product converts the record into an index document. A missing product id gets a
// random one; missing search keywords are derived from name, brand and category.
// Attribute keys are snake_cased to match the tag field paths.
func (r *Record) Product() domproduct.Product {
	id := r.ProductID
	if id == "" {
		id = uuid.NewString()
	}
	var attrs map[string]string
	if len(r.Attributes) > 0 {
		attrs = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			attrs[domds.SnakeCase(k)] = v
		}
	}
	keywords := r.SearchKeywords
	if keywords == "" {
		keywords = strings.Join(strings.Fields(r.Name+" "+r.BrandName+" "+r.CategoryName), " ")
	}
	return domproduct.Product{
		ProductID:      id,
		Name:           r.Name,
		BrandName:      r.BrandName,
		CategoryName:   r.CategoryName,
		Price:          r.Price,
		Description:    r.Description,
		SearchKeywords: keywords,
		Attributes:     attrs,
		ReleaseDate:    r.ReleaseDate,
		Rating:         r.Rating,
		Stock:          int(r.Stock),
		Tags:           r.Tags,
	}
}

// Snapshot builds a tag extraction snapshot from records.
func Snapshot(records []Record) domds.Snapshot {
	rows := make([]domds.Row, len(records))
	for i := range records {
		rows[i] = records[i].Row()
	}
	return domds.New(rows)
}

// Products converts records into index documents.
func Products(records []Record) []domproduct.Product {
	out := make([]domproduct.Product, len(records))
	for i := range records {
		out[i] = records[i].Product()
	}
	return out
}

// AttributeVariants returns the sorted "attributes.<key>" field variants present in records.
func AttributeVariants(records []Record) []string {
	set := make(map[string]struct{})
	for i := range records {
		for k := range records[i].Attributes {
			set[filter.AttributePrefix+domds.SnakeCase(k)] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
