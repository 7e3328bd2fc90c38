package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestValidateGroups(t *testing.T) {
	groups := []OfferGroup{
		{
			GroupingName: "  Apple iPhone 16 Pro ",
			Variants:     []Variant{{Name: "256GB Desert"}},
		},
	}
	out, err := ValidateGroups(groups)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := out[0]
	if g.GroupingName != "Apple iPhone 16 Pro" {
		t.Errorf("grouping name not trimmed: %q", g.GroupingName)
	}
	if g.BrandName != "Unknown" || g.CategoryName != "Uncategorized" {
		t.Errorf("defaults not applied: brand %q category %q", g.BrandName, g.CategoryName)
	}
	if v := g.Variants[0]; v.Currency != "USD" || v.Condition != "New" {
		t.Errorf("variant defaults not applied: %+v", v)
	}
}

func TestValidateGroups_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		groups []OfferGroup
	}{
		{"empty", nil},
		{"no grouping name", []OfferGroup{{GroupingName: "  "}}},
		{"negative quantity", []OfferGroup{{
			GroupingName: "Thing",
			Variants:     []Variant{{Quantity: -1}},
		}}},
	}
	for _, c := range cases {
		if _, err := ValidateGroups(c.groups); err == nil {
			t.Errorf("%s: expected error", c.name)
		} else {
			var ee *ExtractionError
			if !errors.As(err, &ee) {
				t.Errorf("%s: want ExtractionError, got %T", c.name, err)
			}
		}
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
	}
	for _, c := range cases {
		if got := stripFences(c.in); got != c.want {
			t.Errorf("stripFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func geminiAnswering(t *testing.T, text string) (*Gemini, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	g := NewGemini("test-key")
	g.BaseURL = srv.URL
	g.Client = srv.Client()
	return g, srv
}

func TestExtractOffers(t *testing.T) {
	g, srv := geminiAnswering(t, `{"offer_groups":[{"grouping_name":"Samsung S24 Ultra","brand_name":"Samsung","category_name":"Phones","variants":[{"name":"256GB Black","quantity":50,"price":820.5,"currency":null,"storage":"256GB","color":"Black","condition":null,"spec_region":"Vietnam"}]}]}`)
	defer srv.Close()

	groups, err := g.ExtractOffers(context.Background(), "S24 Ultra, Vietnam Version, 256GB, Black, 50 pcs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Variants) != 1 {
		t.Fatalf("groups = %+v", groups)
	}
	v := groups[0].Variants[0]
	if v.Quantity != 50 || !v.Price.Equal(dec("820.5")) {
		t.Errorf("variant = %+v", v)
	}
	if v.Currency != "USD" || v.Condition != "New" {
		t.Errorf("null fields should fall back to defaults: %+v", v)
	}
}

func TestExtractOffers_BadJSON(t *testing.T) {
	g, srv := geminiAnswering(t, "sorry, I cannot help with that")
	defer srv.Close()

	_, err := g.ExtractOffers(context.Background(), "whatever")
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("want ExtractionError, got %v", err)
	}
}

func TestExtractOffers_NoKey(t *testing.T) {
	g := NewGemini("")
	if _, err := g.ExtractOffers(context.Background(), "text"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
}

func TestBestShippingKeyword(t *testing.T) {
	g, srv := geminiAnswering(t, "iPhone 15")
	defer srv.Close()

	got, err := g.BestShippingKeyword(context.Background(), "Apple iPhone 15 Pro", []string{"iPhone 15", "Galaxy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "iPhone 15" {
		t.Errorf("got %q", got)
	}

	// An answer outside the candidate list is discarded.
	g2, srv2 := geminiAnswering(t, "None")
	defer srv2.Close()
	got, err = g2.BestShippingKeyword(context.Background(), "Mystery", []string{"iPhone 15"})
	if err != nil || got != "" {
		t.Errorf("got %q, %v; want empty match", got, err)
	}
}
