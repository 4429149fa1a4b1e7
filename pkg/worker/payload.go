// Package worker implements the delivery coordinator for accepted push
// events: defensive payload decoding, the tag-deduplicated notification
// center, fan-out to attached clients, and click/action routing. The
// coordinator holds no state that must survive a restart; anything
// durable lives in notification storage.
package worker

import (
	"encoding/json"

	"github.com/hs2504785/greenspace-push/pkg/config"
)

// rawPayload is the wire shape of a push payload. Every field is
// optional; missing fields are filled from configured defaults.
type rawPayload struct {
	Title   *string        `json:"title"`
	Message *string        `json:"message"`
	URL     *string        `json:"url"`
	Tag     *string        `json:"tag"`
	Data    map[string]any `json:"data"`
}

// Payload is a fully-defaulted push payload
type Payload struct {
	Title string
	Body  string
	URL   string
	Tag   string
	Data  map[string]any
}

// DecodePayload parses a raw push payload defensively. It always returns
// a usable payload: malformed or absent JSON yields the configured
// defaults plus a *PayloadParseError for logging. Decoding never fails
// the push event.
func DecodePayload(raw []byte, defaults config.NotifyDefaults) (Payload, error) {
	payload := Payload{
		Title: defaults.AppName,
		Body:  defaults.Body,
		URL:   defaults.URL,
		Tag:   defaults.Tag,
	}

	if len(raw) == 0 {
		return payload, &PayloadParseError{Err: errEmptyPayload}
	}

	var decoded rawPayload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return payload, &PayloadParseError{Err: err}
	}

	if decoded.Title != nil && *decoded.Title != "" {
		payload.Title = *decoded.Title
	}
	if decoded.Message != nil && *decoded.Message != "" {
		payload.Body = *decoded.Message
	}
	if decoded.URL != nil && *decoded.URL != "" {
		payload.URL = *decoded.URL
	}
	if decoded.Tag != nil && *decoded.Tag != "" {
		payload.Tag = *decoded.Tag
	}
	payload.Data = decoded.Data

	// A url inside data wins over the top-level field, matching how
	// click routing reads the target
	if payload.Data != nil {
		if url, ok := payload.Data["url"].(string); ok && url != "" {
			payload.URL = url
		}
	}

	return payload, nil
}
