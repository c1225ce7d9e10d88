package dto

import "strings"

// APIKeys is the caller's provider selection. Keys set to "UNSET" or left
// empty are skipped.
type APIKeys struct {
	DefaultModel string `json:"defaultModel" example:"GEMINI"`
	GeminiKey    string `json:"geminiKey,omitempty"`
	GigaChatKey  string `json:"gigachatKey,omitempty"`
}

// Trimmed returns a copy with surrounding whitespace removed.
func (k APIKeys) Trimmed() APIKeys {
	return APIKeys{
		DefaultModel: strings.TrimSpace(k.DefaultModel),
		GeminiKey:    strings.TrimSpace(k.GeminiKey),
		GigaChatKey:  strings.TrimSpace(k.GigaChatKey),
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Warning string `json:"warning,omitempty"`
}
