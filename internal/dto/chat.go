package dto

import "receipt-service/internal/service"

type ChatRequest struct {
	UserID  string                 `json:"userId"`
	Message string                 `json:"message"`
	History []service.HistoryEntry `json:"history"`
	APIKeys APIKeys                `json:"apiKeys"`
}

type ChatResponse struct {
	Response string `json:"response"`
}
