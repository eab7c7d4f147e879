// Package product holds the catalog record returned by searches.
package product

// Product is a catalog document as stored in the product index.
type Product struct {
	ProductID      string            `json:"product_id"`
	Name           string            `json:"name"`
	BrandName      string            `json:"brand_name,omitempty"`
	CategoryName   string            `json:"category_name,omitempty"`
	Price          float64           `json:"price"`
	Description    string            `json:"description,omitempty"`
	SearchKeywords string            `json:"search_keywords,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	ReleaseDate    string            `json:"release_date,omitempty"`
	Rating         float64           `json:"rating"`
	Stock          int               `json:"stock"`
	Tags           []string          `json:"tags,omitempty"`
	// Score is the relevance the index gave this hit. It is never stored.
	Score float64 `json:"score,omitempty"`
}

// Page is one page of products out of Total hits.
type Page struct {
	Total    int
	Products []Product
}

// Response is the search answer: the page, the request echo and the winning stage
// (empty when the keyword fallback answered).
type Response struct {
	Query      string            `json:"q"`
	NumFound   int               `json:"numFound"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Products   []Product         `json:"products"`
	Count      int               `json:"count"`
	Page       int               `json:"page"`
	Stage      string            `json:"stage,omitempty"`
}
