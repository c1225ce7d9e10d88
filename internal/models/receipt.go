package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"receipt-service/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReceiptError is a validation failure tagged with the offending field.
type ReceiptError struct {
	Field   string
	Message string
}

func (e *ReceiptError) Error() string {
	return e.Message
}

func emptyFieldError(field string) *ReceiptError {
	return &ReceiptError{Field: field, Message: fmt.Sprintf("Field '%s' cannot be empty", field)}
}

type Item struct {
	name     string
	cost     decimal.Decimal
	quantity int
}

func (i Item) Name() string          { return i.name }
func (i Item) Cost() decimal.Decimal { return i.cost }
func (i Item) Quantity() int         { return i.quantity }

// Receipt is a validated extraction result. It has no setters.
type Receipt struct {
	merchantName string
	date         time.Time
	totalCost    decimal.Decimal
	category     Category
	items        []Item
}

// NewReceipt validates the raw field mapping returned by a model.
// Keys are merchant_name, date, total_cost, category and itemized_list.
func NewReceipt(fields map[string]any) (*Receipt, error) {
	merchant := strings.TrimSpace(stringField(fields, "merchant_name"))
	if merchant == "" {
		return nil, emptyFieldError("merchant_name")
	}

	rawDate := stringField(fields, "date")
	if strings.TrimSpace(rawDate) == "" {
		return nil, emptyFieldError("date")
	}
	date, err := ParseDate(rawDate)
	if err != nil {
		return nil, err
	}

	rawTotal := stringField(fields, "total_cost")
	if strings.TrimSpace(rawTotal) == "" {
		return nil, emptyFieldError("total_cost")
	}
	total, err := ParseAmount(rawTotal)
	if err != nil {
		return nil, err
	}

	rawCategory := strings.TrimSpace(stringField(fields, "category"))
	if rawCategory == "" {
		return nil, emptyFieldError("category")
	}
	category, err := ValidateCategory(rawCategory)
	if err != nil {
		return nil, err
	}

	items, err := parseItems(fields["itemized_list"])
	if err != nil {
		return nil, err
	}

	return &Receipt{
		merchantName: merchant,
		date:         date,
		totalCost:    total,
		category:     category,
		items:        items,
	}, nil
}

func parseItems(raw any) ([]Item, error) {
	list, _ := raw.([]any)
	if len(list) == 0 {
		return nil, emptyFieldError("itemized_list")
	}

	items := make([]Item, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, &ReceiptError{Field: "itemized_list", Message: "Each entry of 'itemized_list' must be an object with item_name, item_cost and item_quantity"}
		}

		name := strings.TrimSpace(stringField(m, "item_name"))
		if name == "" {
			return nil, emptyFieldError("item_name")
		}

		rawCost := strings.TrimSpace(stringField(m, "item_cost"))
		if rawCost == "" || rawCost == missingValue {
			logger.Warn("Missing item_cost, defaulting to 0.00", zap.String("item_name", name))
			rawCost = "0.00"
		}
		cost, err := ParseAmount(rawCost)
		if err != nil {
			logger.Warn("Couldn't parse item_cost, defaulting to 0.00",
				zap.String("item_name", name),
				zap.String("item_cost", rawCost),
			)
			cost = decimal.Zero
		}

		items = append(items, Item{name: name, cost: cost, quantity: ParseQuantity(m["item_quantity"])})
	}
	return items, nil
}

// stringField renders scalar values as text; nil and missing keys are "".
func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64, int, int64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func (r *Receipt) MerchantName() string       { return r.merchantName }
func (r *Receipt) Date() time.Time            { return r.date }
func (r *Receipt) TotalCost() decimal.Decimal { return r.totalCost }
func (r *Receipt) Category() Category         { return r.category }

// Items returns a copy of the itemized list.
func (r *Receipt) Items() []Item {
	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}

type itemJSON struct {
	ItemName     string `json:"item_name"`
	ItemCost     string `json:"item_cost"`
	ItemQuantity int    `json:"item_quantity"`
}

type receiptJSON struct {
	MerchantName string     `json:"merchant_name"`
	Date         string     `json:"date"`
	TotalCost    string     `json:"total_cost"`
	Category     string     `json:"category"`
	ItemizedList []itemJSON `json:"itemized_list"`
}

func (r *Receipt) view() receiptJSON {
	items := make([]itemJSON, 0, len(r.items))
	for _, it := range r.items {
		items = append(items, itemJSON{ItemName: it.name, ItemCost: FormatAmount(it.cost), ItemQuantity: it.quantity})
	}
	return receiptJSON{
		MerchantName: r.merchantName,
		Date:         FormatDate(r.date),
		TotalCost:    FormatAmount(r.totalCost),
		Category:     string(r.category),
		ItemizedList: items,
	}
}

// MarshalJSON emits the transport shape with snake_case keys.
func (r *Receipt) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.view())
}

// ToMap converts the receipt to nested primitive values.
func (r *Receipt) ToMap() map[string]any {
	v := r.view()
	items := make([]any, 0, len(v.ItemizedList))
	for _, it := range v.ItemizedList {
		items = append(items, map[string]any{
			"item_name":     it.ItemName,
			"item_cost":     it.ItemCost,
			"item_quantity": it.ItemQuantity,
		})
	}
	return map[string]any{
		"merchant_name": v.MerchantName,
		"date":          v.Date,
		"total_cost":    v.TotalCost,
		"category":      v.Category,
		"itemized_list": items,
	}
}

// ToRecord builds the persisted shape for a user.
func (r *Receipt) ToRecord(id, userID string) *StoredReceipt {
	total := FormatAmount(r.totalCost)
	items := make([]StoredItem, 0, len(r.items))
	for _, it := range r.items {
		items = append(items, StoredItem{
			ItemName:     it.name,
			ItemCost:     LooseString(FormatAmount(it.cost)),
			ItemQuantity: LooseInt(it.quantity),
		})
	}
	return &StoredReceipt{
		ID:           id,
		UserID:       userID,
		MerchantName: r.merchantName,
		Date:         r.date.Format("2006-01-02"),
		TotalCost:    LooseString(total),
		Category:     string(r.category),
		ItemizedList: items,
	}
}
