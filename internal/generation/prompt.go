package generation

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/productpulse/pulse/internal/product"
	"github.com/productpulse/pulse/internal/provider"
)

const schemaName = "product_page"

const systemPromptTemplate = `You generate concise shopping spotlights. Always return strictly valid JSON that matches the provided schema.
- Produce exactly %d distinct products per response.
- Each product must reference a real item that can be purchased today.
- Include a direct HTTPS mediaUrl for every product (brand press kit or royalty-free photo that visually matches the item).
- Avoid duplicate titles or URLs across the products.
- Keep copy under 320 characters per field.
- Estimate how likely each product can be found at mainstream retailers using retailLookupConfidence (0 = obscure prototype, 1 = widely stocked). Favor confident matches when unsure.`

// productPageSchema mirrors the validation tags on product.GenerationResponse.
var productPageSchema = json.RawMessage(`{
  "type": "object",
  "required": ["products"],
  "properties": {
    "products": {
      "type": "array",
      "minItems": 2,
      "maxItems": 4,
      "items": {
        "type": "object",
        "required": ["id", "title", "summary", "whatItIs", "whyUseful", "priceRange", "pros", "cons", "tags", "buyLinks", "noveltyScore", "generatedAt", "source"],
        "properties": {
          "id": {"type": "string"},
          "title": {"type": "string"},
          "summary": {"type": "string"},
          "whatItIs": {"type": "string"},
          "whyUseful": {"type": "string"},
          "priceRange": {
            "type": "object",
            "required": ["min", "max", "currency"],
            "properties": {
              "min": {"type": "number", "minimum": 0},
              "max": {"type": "number", "minimum": 0},
              "currency": {"type": "string", "minLength": 3, "maxLength": 3}
            }
          },
          "pros": {"type": "array", "minItems": 2, "items": {"type": "string"}},
          "cons": {"type": "array", "minItems": 1, "items": {"type": "string"}},
          "tags": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["id", "label"],
              "properties": {
                "id": {"type": "string"},
                "label": {"type": "string"},
                "weight": {"type": "number"}
              }
            }
          },
          "buyLinks": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["label", "url"],
              "properties": {
                "label": {"type": "string"},
                "url": {"type": "string"},
                "priceHint": {"type": "string"},
                "trusted": {"type": "boolean"}
              }
            }
          },
          "mediaUrl": {"type": "string"},
          "noveltyScore": {"type": "number", "minimum": 0, "maximum": 1},
          "generatedAt": {"type": "string"},
          "source": {"type": "string", "enum": ["ai", "scrape", "hybrid"]},
          "retailLookupConfidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  }
}`)

type viewedItem struct {
	ID    string        `json:"id"`
	Tags  []product.Tag `json:"tags"`
	Liked bool          `json:"liked"`
}

type promptConstraints struct {
	TokenLimit        int `json:"tokenLimit"`
	DedupeWithinHours int `json:"dedupeWithinHours"`
	MaxPriceUSD       int `json:"maxPriceUSD"`
	ResultsRequested  int `json:"resultsRequested"`
}

type userPrompt struct {
	Preferences product.Preferences `json:"preferences"`
	SearchTerms []string            `json:"searchTerms"`
	LastViewed  []viewedItem        `json:"lastViewed"`
	Constraints promptConstraints   `json:"constraints"`
}

// BuildPrompt constructs the structured-output prompt for a request.
func BuildPrompt(req product.GenerationRequest) (provider.Prompt, error) {
	desired := ClampResults(req.ResultsRequested)

	viewed := make([]viewedItem, 0, len(req.LastViewed))
	for _, p := range req.LastViewed {
		viewed = append(viewed, viewedItem{
			ID:    p.ID,
			Tags:  p.Tags,
			Liked: slices.Contains(req.Preferences.LikedTags, p.ID),
		})
	}

	user, err := json.Marshal(userPrompt{
		Preferences: req.Preferences,
		SearchTerms: orEmpty(req.SearchTerms),
		LastViewed:  viewed,
		Constraints: promptConstraints{
			TokenLimit:        768,
			DedupeWithinHours: 24,
			MaxPriceUSD:       2000,
			ResultsRequested:  desired,
		},
	})
	if err != nil {
		return provider.Prompt{}, fmt.Errorf("encoding prompt: %w", err)
	}

	return provider.Prompt{
		System:     fmt.Sprintf(systemPromptTemplate, desired),
		User:       string(user),
		SchemaName: schemaName,
		Schema:     productPageSchema,
	}, nil
}
