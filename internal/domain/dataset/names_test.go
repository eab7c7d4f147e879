package dataset

import "testing"

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"brandName":    "brand_name",
		"brand_name":   "brand_name",
		"HTTPServer":   "http_server",
		"name":         "name",
		"productID":    "product_id",
		"categoryName": "category_name",
		"screenSize":   "screen_size",
	}
	for in, want := range tests {
		if got := SnakeCase(in); got != want {
			t.Errorf("SnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
