package dto

import "receipt-service/internal/models"

// ReceiptResponse is the extracted receipt. Date is DD/MM/YYYY and amounts
// carry two decimals.
type ReceiptResponse struct {
	MerchantName string         `json:"merchant_name" example:"FairPrice"`
	Date         string         `json:"date" example:"15/01/2024"`
	TotalCost    string         `json:"total_cost" example:"12.50"`
	Category     string         `json:"category" example:"Food"`
	ItemizedList []ItemResponse `json:"itemized_list"`
	// ReceiptID is set when the receipt was stored for a user.
	ReceiptID string `json:"receipt_id,omitempty"`
}

type ItemResponse struct {
	ItemName     string `json:"item_name"`
	ItemCost     string `json:"item_cost"`
	ItemQuantity int    `json:"item_quantity"`
}

func NewReceiptResponse(r *models.Receipt) ReceiptResponse {
	items := make([]ItemResponse, 0, len(r.Items()))
	for _, it := range r.Items() {
		items = append(items, ItemResponse{
			ItemName:     it.Name(),
			ItemCost:     models.FormatAmount(it.Cost()),
			ItemQuantity: it.Quantity(),
		})
	}
	return ReceiptResponse{
		MerchantName: r.MerchantName(),
		Date:         models.FormatDate(r.Date()),
		TotalCost:    models.FormatAmount(r.TotalCost()),
		Category:     string(r.Category()),
		ItemizedList: items,
	}
}

type ReviewRequest struct {
	APIKeys  APIKeys                `json:"apiKeys"`
	Receipts []models.StoredReceipt `json:"receipts"`
	Query    string                 `json:"query"`
}
