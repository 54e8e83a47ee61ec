package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// lineItemPrompt is the shared prompt used by all extraction backends.
const lineItemPrompt = `Analyze this image of a grocery receipt. Extract every purchased line item, ignoring supermarket discounts.
For each item, provide:
1. "name": The description of the item. Be as specific as possible from the text.
2. "quantity": The quantity purchased for that line item. If not explicitly stated, use null. If it is a weight (e.g. 0.5 kg), use that value. If it is an interpretable fractional quantity like "1/2 DOZEN", represent it as 6.
3. "unit_price": The price of a single unit. If only a total for multiple units is given (e.g. "2 for $5.00"), calculate the per-unit price (2.50). If it is a price per kg/lb, use that. Use null if it cannot be read.
4. "total_price": The extended price for the whole line. Use null if it cannot be read.

Return the data as a valid JSON list of objects, each with the keys "name", "quantity", "unit_price" and "total_price". Numeric fields must be numbers or null, never strings.
Example: [{"name": "Fuji Apples", "quantity": 3, "unit_price": 1.50, "total_price": 4.50}, {"name": "Organic Milk 1L", "quantity": 1, "unit_price": 2.79, "total_price": 2.79}]
If no items are visible, or the image is not a receipt, return an empty JSON list [].
Focus ONLY on individual purchased line items. IGNORE headers, footers, store name, date, loyalty card information, subtotals, taxes, total amount, payment details, and any promotional text.
Ensure the output is ONLY the JSON list and nothing else. Do not use markdown code blocks.`

// Gemini implements the Extractor interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Extractor instance
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	// Low temperature keeps the output factual and parseable
	model.SetTemperature(0.2)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// ExtractItems reads the line items visible on one receipt frame
func (g *Gemini) ExtractItems(ctx context.Context, png []byte) ([]LineItem, error) {
	parts := []genai.Part{
		genai.ImageData("png", png),
		genai.Text(lineItemPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ParseError{Reason: "no response from gemini"}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return parseLineItems(responseText.String())
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
