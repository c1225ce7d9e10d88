package service

import (
	"context"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Image struct {
	MIMEType string
	Data     []byte
}

// Message is one turn of a conversation. Images are only sent on user turns.
type Message struct {
	Role   Role
	Text   string
	Images []Image
}

type Reply struct {
	Text string
	// TotalTokens is the token usage reported for the whole exchange.
	TotalTokens int
}

// Model is a generative backend bound to one response format
// (receipt schema, review schema or free text).
type Model interface {
	Generate(ctx context.Context, history []Message) (*Reply, error)
	CountTokens(ctx context.Context, text string) (int, error)
	InputTokenLimit() int
}

// Provider is one vendor, constructed from a single credential.
type Provider interface {
	Name() string
	ExtractionModel(ctx context.Context) (Model, error)
	ReviewModel(ctx context.Context) (Model, error)
	ChatModel(ctx context.Context) (Model, error)
	Close() error
}

// ProviderFactory builds a provider. It returns *APIKeyError when the
// vendor refuses the credential.
type ProviderFactory func(ctx context.Context, apiKey string) (Provider, error)

// APIKeyError means the vendor rejected the credential.
type APIKeyError struct {
	Provider string
	Err      error
}

func (e *APIKeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid API key for %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("invalid API key for %s", e.Provider)
}

func (e *APIKeyError) Unwrap() error { return e.Err }

// CredentialsError is returned once every provider up to the last one
// refused its credential.
type CredentialsError struct {
	Providers []string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("Invalid API keys for [%s]", strings.Join(e.Providers, ", "))
}
