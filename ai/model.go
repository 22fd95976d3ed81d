// Package ai talks to a generative model with web search grounding to produce
// portfolio analyses and price quotes.
package ai

import (
	"context"
	"errors"
	"fmt"

	journal "github.com/etnz/stockjournal"
	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned when no credentials were configured.
var ErrMissingAPIKey = errors.New("missing Gemini API key (set GEMINI_API_KEY)")

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// Answer is the raw text produced by a model and the web pages it used.
type Answer struct {
	Text    string
	Sources []journal.Source
}

// Model generates an answer to a single prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (*Answer, error)
}

// Gemini is a Model backed by the Gemini API with Google Search enabled.
//
// Search grounding cannot be combined with a response schema, so the answer is
// free text and the caller has to extract the JSON from it.
type Gemini struct {
	ModelName string
	Config    *genai.GenerateContentConfig
	client    *genai.Client
}

// NewGemini creates a client for model using apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create Gemini client: %w", err)
	}
	return &Gemini{
		ModelName: model,
		client:    client,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
			You are a senior equity analyst advising a retail investor. You Leverage Google Search to
			ground your assertions on recent market data and news.
			You always answer with exactly one JSON object and nothing else.
			`}}},
		},
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (*Answer, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.ModelName, genai.Text(prompt), g.Config)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no response from model %s", g.ModelName)
	}
	return &Answer{Text: resp.Text(), Sources: sources(resp)}, nil
}

// sources collects the web grounding chunks, deduplicated by URI.
func sources(resp *genai.GenerateContentResponse) []journal.Source {
	var res []journal.Source
	seen := make(map[string]bool)
	for _, c := range resp.Candidates {
		if c.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range c.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
				continue
			}
			seen[chunk.Web.URI] = true
			res = append(res, journal.Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
		}
	}
	return res
}
