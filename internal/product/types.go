// Package product holds the feed's domain records shared by the generation,
// enrichment and HTTP layers.
package product

import (
	"maps"
	"slices"
)

// Source records where a product's data came from.
type Source string

const (
	SourceAI     Source = "ai"
	SourceScrape Source = "scrape"
	SourceHybrid Source = "hybrid"
)

type Tag struct {
	ID     string   `json:"id" validate:"required"`
	Label  string   `json:"label" validate:"required"`
	Weight *float64 `json:"weight,omitempty"`
}

type BuyLink struct {
	Label     string `json:"label"`
	URL       string `json:"url" validate:"required,url"`
	PriceHint string `json:"priceHint,omitempty"`
	Trusted   bool   `json:"trusted"`
}

type PriceRange struct {
	Min      float64 `json:"min" validate:"gte=0"`
	Max      float64 `json:"max" validate:"gte=0"`
	Currency string  `json:"currency" validate:"len=3"`
}

// Product is one AI-described item in the feed.
type Product struct {
	ID                     string     `json:"id" validate:"required"`
	Title                  string     `json:"title" validate:"required"`
	Summary                string     `json:"summary"`
	WhatItIs               string     `json:"whatItIs"`
	WhyUseful              string     `json:"whyUseful"`
	PriceRange             PriceRange `json:"priceRange"`
	Pros                   []string   `json:"pros" validate:"min=2"`
	Cons                   []string   `json:"cons" validate:"min=1"`
	Tags                   []Tag      `json:"tags" validate:"dive"`
	BuyLinks               []BuyLink  `json:"buyLinks" validate:"dive"`
	MediaURL               string     `json:"mediaUrl,omitempty"`
	NoveltyScore           float64    `json:"noveltyScore" validate:"gte=0,lte=1"`
	GeneratedAt            string     `json:"generatedAt"`
	Source                 Source     `json:"source" validate:"oneof=ai scrape hybrid"`
	RetailLookupConfidence *float64   `json:"retailLookupConfidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Clone returns a deep copy so callers can modify the result without touching p.
func (p Product) Clone() Product {
	c := p
	c.Pros = slices.Clone(p.Pros)
	c.Cons = slices.Clone(p.Cons)
	c.BuyLinks = slices.Clone(p.BuyLinks)
	if p.Tags != nil {
		c.Tags = make([]Tag, len(p.Tags))
		for i, t := range p.Tags {
			if t.Weight != nil {
				w := *t.Weight
				t.Weight = &w
			}
			c.Tags[i] = t
		}
	}
	if p.RetailLookupConfidence != nil {
		v := *p.RetailLookupConfidence
		c.RetailLookupConfidence = &v
	}
	return c
}

// Preferences is the learned taste profile of one feed user.
type Preferences struct {
	LikedTags        []string           `json:"likedTags"`
	DislikedTags     []string           `json:"dislikedTags"`
	BlacklistedItems []string           `json:"blacklistedItems"`
	TagWeights       map[string]float64 `json:"tagWeights"`
}

// Clone returns a deep copy of p.
func (p Preferences) Clone() Preferences {
	return Preferences{
		LikedTags:        slices.Clone(p.LikedTags),
		DislikedTags:     slices.Clone(p.DislikedTags),
		BlacklistedItems: slices.Clone(p.BlacklistedItems),
		TagWeights:       maps.Clone(p.TagWeights),
	}
}

type GenerationRequest struct {
	SessionID        string      `json:"sessionId" validate:"required"`
	UserID           string      `json:"userId" validate:"required"`
	Preferences      Preferences `json:"preferences"`
	SearchTerms      []string    `json:"searchTerms" validate:"max=20,dive,max=120"`
	LastViewed       []Product   `json:"lastViewed"`
	ResultsRequested int         `json:"resultsRequested,omitempty" validate:"gte=0"`
}

type Debug struct {
	PromptTokens     int    `json:"promptTokens,omitempty"`
	CompletionTokens int    `json:"completionTokens,omitempty"`
	Provider         string `json:"provider,omitempty"`
}

type GenerationResponse struct {
	Products []Product `json:"products" validate:"min=2,max=4,dive"`
	Debug    *Debug    `json:"debug,omitempty"`
}

// Clone returns a deep copy of r.
func (r GenerationResponse) Clone() GenerationResponse {
	c := GenerationResponse{}
	if r.Products != nil {
		c.Products = make([]Product, len(r.Products))
		for i, p := range r.Products {
			c.Products[i] = p.Clone()
		}
	}
	if r.Debug != nil {
		d := *r.Debug
		c.Debug = &d
	}
	return c
}
