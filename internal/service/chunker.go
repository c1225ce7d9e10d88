package service

import (
	"fmt"
	"strings"

	"receipt-service/internal/models"
)

const (
	notAvailable = "N/A"
	// minChunkLength drops fragments too short to carry meaning.
	minChunkLength = 5
)

// ChunkReceipt turns a receipt into text fragments for similarity search.
// Output depends only on the input, so re-embedding is reproducible.
// Every fragment carries the receipt id when one is given.
func ChunkReceipt(receiptID string, data *models.StoredReceipt) []string {
	merchant := orNA(data.MerchantName)
	date := orNA(data.Date)
	category := orNA(data.Category)
	total := orNA(string(data.TotalCost))

	tag := ""
	if id := strings.TrimSpace(receiptID); id != "" {
		tag = fmt.Sprintf(" [receipt %s]", id)
	}

	chunks := []string{
		fmt.Sprintf("Receipt from %s on %s. Category: %s. Total: %s.%s", merchant, date, category, total, tag),
	}
	if merchant != notAvailable {
		chunks = append(chunks, fmt.Sprintf("Merchant: %s%s", merchant, tag))
	}
	if category != notAvailable {
		chunks = append(chunks, fmt.Sprintf("Category: %s%s", category, tag))
	}

	if len(data.ItemizedList) > 0 {
		names := make([]string, 0, len(data.ItemizedList))
		for _, it := range data.ItemizedList {
			names = append(names, fmt.Sprintf("%s x%d", orNA(it.ItemName), it.ItemQuantity))
		}
		chunks = append(chunks, fmt.Sprintf("Items bought at %s on %s: %s.%s", merchant, date, strings.Join(names, ", "), tag))

		for _, it := range data.ItemizedList {
			name := orNA(it.ItemName)
			cost := orNA(string(it.ItemCost))
			chunks = append(chunks,
				fmt.Sprintf("Bought %s (quantity %d, cost %s) at %s on %s, category %s.%s", name, it.ItemQuantity, cost, merchant, date, category, tag),
				fmt.Sprintf("Item: %s, Quantity: %d, Cost: %s%s", name, it.ItemQuantity, cost, tag),
			)
		}
	}

	out := chunks[:0]
	for _, c := range chunks {
		if len(strings.TrimSpace(c)) > minChunkLength {
			out = append(out, c)
		}
	}
	return out
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return strings.TrimSpace(s)
}
