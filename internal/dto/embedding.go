package dto

import "receipt-service/internal/models"

type EmbedReceiptRequest struct {
	UserID      string                `json:"userId"`
	ReceiptID   string                `json:"receiptId"`
	ReceiptData *models.StoredReceipt `json:"receiptData"`
}

type DeleteEmbeddingsResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}
