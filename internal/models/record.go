package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StoredReceipt is the persisted receipt record. The same camelCase shape is
// accepted as receiptData on the embedding endpoint.
type StoredReceipt struct {
	ID           string       `json:"id,omitempty" db:"id"`
	UserID       string       `json:"userId,omitempty" db:"user_id"`
	MerchantName string       `json:"merchantName" db:"merchant_name"`
	Date         string       `json:"date" db:"date"`
	TotalCost    LooseString  `json:"totalCost" db:"total_cost"`
	Category     string       `json:"category" db:"category"`
	ItemizedList []StoredItem `json:"itemizedList" db:"itemized_list"`
	CreatedAt    time.Time    `json:"createdAt,omitempty" db:"created_at"`
}

type StoredItem struct {
	ItemName     string      `json:"itemName"`
	ItemCost     LooseString `json:"itemCost"`
	ItemQuantity LooseInt    `json:"itemQuantity"`
}

// TotalAmount coerces the stored total to a number; blank or unparsable is zero.
func (r *StoredReceipt) TotalAmount() decimal.Decimal {
	return r.TotalCost.Amount()
}

// LooseString accepts a JSON string, number or null.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = LooseString(n.String())
	return nil
}

// Amount reads the value as money, or zero when it is not numeric.
func (s LooseString) Amount() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(s)), "$")))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// LooseInt accepts any JSON scalar and coerces it with ParseQuantity.
type LooseInt int

func (q *LooseInt) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*q = LooseInt(ParseQuantity(v))
	return nil
}

// EmbeddingChunk is one stored text fragment with its vector.
type EmbeddingChunk struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	ReceiptID string    `db:"receipt_id"`
	TextChunk string    `db:"text_chunk"`
	Embedding []float32 `db:"embedding"`
	CreatedAt time.Time `db:"created_at"`
}

// ChunkMatch is a similarity search hit.
type ChunkMatch struct {
	ReceiptID string  `json:"receiptId"`
	TextChunk string  `json:"textChunk"`
	Score     float64 `json:"score"`
}
