package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// Gemini implements ports.ChatModel with the generateContent endpoint.
type Gemini struct {
	*client
	baseURL string
	model   string
	apiKey  string
}

// NewGemini creates a Gemini client.
func NewGemini(baseURL, model, apiKey string, httpClient *http.Client, maxRetries int) *Gemini {
	return &Gemini{
		client:  newClient(httpClient, maxRetries),
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate sends prompt and returns the first candidate's text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}})
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, url.QueryEscape(g.apiKey))

	var decoded geminiResponse
	err = g.getJSON(ctx, "gemini.generateContent", func(ctx context.Context) (*http.Request, error) {
		return g.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	}, &decoded)
	if err != nil {
		return "", networkFailure("gemini", err)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: unexpected response shape: %w", domain.ErrEmptyResult)
	}
	return strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text), nil
}
