package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"utter/encoder"
)

const deepgramBaseURL = "https://api.deepgram.com/v1/listen"

type Deepgram struct {
	baseTranscriber
	apiKey string
}

func NewDeepgram(apiKey string) *Deepgram {
	return &Deepgram{
		baseTranscriber: baseTranscriber{
			client: NewTracedClient(),
			apiURL: deepgramBaseURL,
		},
		apiKey: apiKey,
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

// Probe checks API reachability for health caching.
func (d *Deepgram) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.deepgram.com", nil)
	if err != nil {
		return err
	}
	_, err = d.client.Do(req)
	return err
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
		Channels int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) Transcribe(ctx context.Context, pcm []byte) (*Result, error) {
	audioData, err := encoder.Encode(pcm)
	if err != nil {
		return nil, fmt.Errorf("flac encode: %w", err)
	}

	q := url.Values{}
	q.Set("model", "nova-3")
	if d.lang != "" {
		q.Set("language", d.lang)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.apiURL+"?"+q.Encode(), bytes.NewReader(audioData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/flac")

	resp, err := d.client.Do(req)
	if err != nil {
		// context cancellation must stay distinguishable for the caller
		if ctx.Err() != nil {
			return nil, fmt.Errorf("deepgram request: %w", ctx.Err())
		}
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(resp.Body, &dgResp); err != nil {
		return nil, fmt.Errorf("deepgram response parse error: %w", err)
	}

	var text string
	var confidence float64
	if len(dgResp.Results.Channels) > 0 && len(dgResp.Results.Channels[0].Alternatives) > 0 {
		alt := dgResp.Results.Channels[0].Alternatives[0]
		text = alt.Transcript
		confidence = alt.Confidence
	}

	remaining := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")

	return &Result{
		Text:       text,
		Confidence: confidence,
		Duration:   dgResp.Metadata.Duration,
		Metrics:    resp.Metrics,
		RateLimit:  remaining + "/" + limit,
	}, nil
}
