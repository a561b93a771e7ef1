package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/productpulse/pulse/internal/generation"
	"github.com/productpulse/pulse/internal/product"
	"github.com/productpulse/pulse/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Generator Generator
	Enricher  RetailEnricher
	Summary   MetricsSummarizer // optional; metrics://summary fails when nil
	Erasures  ErasureLog        // optional
	Scraper   Scraper           // optional; scrape_product is not offered when nil
}

// NewMCPServer creates an MCP server exposing the generation and enrichment
// pipeline as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"pulse",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("pulse generates shopping-feed product cards and matches them to retailer listings."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_products",
			mcp.WithDescription("Generate a page of product cards for a feed request, served from cache when possible."),
			mcp.WithString("request", mcp.Description("JSON generation request: sessionId, userId, preferences, searchTerms, lastViewed, resultsRequested"), mcp.Required()),
			mcp.WithBoolean("force_novelty", mcp.Description("Skip the response cache")),
		),
		mcpGenerateProducts(deps),
	)

	s.AddTool(
		mcp.NewTool("enrich_products",
			mcp.WithDescription("Attach retailer buy links to products that look purchasable."),
			mcp.WithString("products", mcp.Description("JSON array of product objects"), mcp.Required()),
		),
		mcpEnrichProducts(deps),
	)

	s.AddTool(
		mcp.NewTool("clear_caches",
			mcp.WithDescription("Drop cached product pages, retailer listings and hot-query counters."),
		),
		mcpClearCaches(deps),
	)

	if deps.Scraper != nil {
		s.AddTool(
			mcp.NewTool("scrape_product",
				mcp.WithDescription("Read title, summary and price from a retailer product page."),
				mcp.WithString("url", mcp.Description("Absolute http(s) product page URL"), mcp.Required()),
			),
			mcpScrapeProduct(deps),
		)
	}

	s.AddResource(
		mcp.NewResource(
			"metrics://summary",
			"Metrics Summary",
			mcp.WithResourceDescription("Aggregated pipeline events and retailer cache stats as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSummary(deps),
	)

	return s
}

func mcpGenerateProducts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("request")
		if err != nil {
			return mcpError("request is required"), nil
		}

		var genReq product.GenerationRequest
		if err := json.Unmarshal([]byte(raw), &genReq); err != nil {
			return mcpError(fmt.Sprintf("invalid request JSON: %v", err)), nil
		}
		if err := product.Validate(&genReq); err != nil {
			return mcpError(err.Error()), nil
		}

		opts := generation.Options{ForceNovelty: req.GetBool("force_novelty", false)}
		page, err := deps.Generator.RequestProductPage(ctx, genReq, opts)
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		b, err := json.Marshal(generateResponse{GenerationResponse: page.Response, CacheHit: page.CacheHit})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpEnrichProducts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("products")
		if err != nil {
			return mcpError("products is required"), nil
		}

		var products []product.Product
		if err := json.Unmarshal([]byte(raw), &products); err != nil {
			return mcpError(fmt.Sprintf("invalid products JSON: %v", err)), nil
		}
		if len(products) == 0 {
			return mcpText("[]"), nil
		}

		enriched, err := deps.Enricher.Enrich(ctx, products)
		if err != nil {
			return mcpError(fmt.Sprintf("enrichment failed: %v", err)), nil
		}
		b, err := json.Marshal(enriched)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal products: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClearCaches(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		deps.Generator.ClearProductCache()
		deps.Enricher.ClearRetailerCache()

		id := uuid.NewString()
		if deps.Erasures != nil {
			e := storage.Erasure{ID: id, ErasedAt: time.Now().UTC(), Scope: "caches", Client: "mcp"}
			if err := deps.Erasures.RecordErasure(e); err != nil {
				return mcpError(fmt.Sprintf("caches cleared but failed to log erasure: %v", err)), nil
			}
		}
		return mcpText(fmt.Sprintf("Cleared caches (%s)", id)), nil
	}
}

func mcpScrapeProduct(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		u, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}

		md, err := deps.Scraper.Fetch(ctx, u)
		if err != nil {
			return mcpError(fmt.Sprintf("scrape failed: %v", err)), nil
		}

		b, err := json.Marshal(md)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal metadata: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSummary(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Summary == nil {
			return nil, fmt.Errorf("metrics store not configured")
		}
		summary, err := deps.Summary.Summary()
		if err != nil {
			return nil, fmt.Errorf("failed to read metrics: %w", err)
		}

		b, err := json.Marshal(map[string]any{
			"snapshot": summary,
			"retail":   deps.Enricher.Stats(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summary: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
