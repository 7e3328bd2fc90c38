package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nzahrani/offercast/internal/metrics"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-1.5-flash-latest"
)

const offersPrompt = `You are an expert data extraction system. Your primary task is to analyze raw text from supplier offers and transform it into a structured JSON object.
The root of the JSON object must be a key named "offer_groups", which contains an array of offer group objects.

CRITICAL INSTRUCTIONS:
1. "grouping_name": This MUST be the main, recognizable product name (e.g., "Apple iPhone 16 Pro", "Samsung Galaxy S24 Ultra").
2. "spec_region": Actively look for any mention of a country, region, or specification (e.g., "USA", "Japan", "International", "Global", "Middle East", "KSA", "UAE", "Vietnam"). If you find a general context at the start of the text, apply it to all subsequent offers unless an offer has its own specific region.
3. "variants": This array contains the specific details that differ between items in the same group (like color or storage).

Each object in the "offer_groups" array MUST have these keys:
- "grouping_name": string.
- "brand_name": string.
- "category_name": string (Infer from: ["Phones", "Tablets", "Laptops", "Watches", "Accessories"]).
- "variants": array of objects, each with keys:
    - "name": string (the specific detail, e.g., "256GB DESERT").
    - "quantity": integer.
    - "price": float.
    - "currency": string (default 'USD').
    - "storage": string.
    - "color": string.
    - "condition": string (default 'New').
    - "spec_region": string.

Your entire response MUST be ONLY a valid JSON object starting with {"offer_groups": [...]}.
---
TEXT TO ANALYZE:
`

const shippingListPrompt = `You are a data extraction expert. Analyze the provided document.
Extract the data into a structured JSON object whose root is a key named "shipping_rates" containing an array of rate objects.
Each object MUST have these keys:
- "product_keyword_en": string (the item name in English).
- "product_keyword_ar": string (the item name in Arabic).
- "cost": float.
- "currency": string (e.g. 'AED').
Your entire response MUST be ONLY the JSON object.`

// Gemini calls the Generative Language REST API.
type Gemini struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewGemini(apiKey string) *Gemini {
	return &Gemini{
		APIKey:  apiKey,
		Model:   defaultModel,
		BaseURL: defaultBaseURL,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type generatePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *generateInline `json:"inline_data,omitempty"`
}

type generateInline struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generateRequest struct {
	Contents []struct {
		Parts []generatePart `json:"parts"`
	} `json:"contents"`
	GenerationConfig *struct {
		ResponseMimeType string `json:"responseMimeType,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Gemini) generate(ctx context.Context, jsonMode bool, parts ...generatePart) (string, error) {
	if g.APIKey == "" {
		return "", ErrNotConfigured
	}

	var req generateRequest
	req.Contents = append(req.Contents, struct {
		Parts []generatePart `json:"parts"`
	}{Parts: parts})
	if jsonMode {
		req.GenerationConfig = &struct {
			ResponseMimeType string `json:"responseMimeType,omitempty"`
		}{ResponseMimeType: "application/json"}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.BaseURL, "/"), g.Model, g.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("gemini read response: %w", err)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("gemini decode response: %w", err)
	}
	if gr.Error != nil {
		return "", fmt.Errorf("gemini api error %d: %s", gr.Error.Code, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}

// stripFences removes markdown code fences some responses wrap the JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractOffers structures raw supplier text into validated offer groups.
func (g *Gemini) ExtractOffers(ctx context.Context, text string) ([]OfferGroup, error) {
	out, err := g.generate(ctx, true, generatePart{Text: offersPrompt + text})
	if err != nil {
		if err != ErrNotConfigured {
			metrics.ExtractionFailuresTotal.Inc()
		}
		return nil, err
	}

	var parsed struct {
		OfferGroups []OfferGroup `json:"offer_groups"`
	}
	if err := json.Unmarshal([]byte(stripFences(out)), &parsed); err != nil {
		metrics.ExtractionFailuresTotal.Inc()
		return nil, &ExtractionError{Reason: "response is not valid JSON", Err: err}
	}

	groups, err := ValidateGroups(parsed.OfferGroups)
	if err != nil {
		metrics.ExtractionFailuresTotal.Inc()
		return nil, err
	}
	return groups, nil
}

// ExtractShippingList structures a shipping price-list document (image or
// PDF bytes) into shipping items.
func (g *Gemini) ExtractShippingList(ctx context.Context, data, mimeType string) ([]ShippingItem, error) {
	out, err := g.generate(ctx, false,
		generatePart{Text: shippingListPrompt},
		generatePart{InlineData: &generateInline{MimeType: mimeType, Data: data}},
	)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ShippingRates []ShippingItem `json:"shipping_rates"`
	}
	if err := json.Unmarshal([]byte(stripFences(out)), &parsed); err != nil {
		return nil, &ExtractionError{Reason: "shipping list response is not valid JSON", Err: err}
	}
	return parsed.ShippingRates, nil
}

// BestShippingKeyword asks the model for the closest semantic match among
// the stored shipping keywords. Returns "" when nothing fits.
func (g *Gemini) BestShippingKeyword(ctx context.Context, productName string, keywords []string) (string, error) {
	if len(keywords) == 0 {
		return "", nil
	}
	prompt := fmt.Sprintf(`Analyze the product name: %q.
From the following list of shipping keywords: %v.
Which single keyword is the most appropriate semantic match?
Respond with ONLY the single best-matching keyword string. If no good match, respond with "None".`, productName, keywords)

	out, err := g.generate(ctx, false, generatePart{Text: prompt})
	if err != nil {
		return "", err
	}
	best := strings.TrimSpace(out)
	for _, k := range keywords {
		if best == k {
			return best, nil
		}
	}
	return "", nil
}
