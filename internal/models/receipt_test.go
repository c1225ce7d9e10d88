package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() map[string]any {
	return map[string]any{
		"merchant_name": "FairPrice",
		"date":          "15/01/2024",
		"total_cost":    "$12.50",
		"category":      "Food",
		"itemized_list": []any{
			map[string]any{"item_name": "Milk", "item_cost": "4.50", "item_quantity": "2"},
			map[string]any{"item_name": "Bread", "item_cost": "3.50", "item_quantity": 1.0},
		},
	}
}

func TestNewReceipt(t *testing.T) {
	r, err := NewReceipt(validFields())
	require.NoError(t, err)

	assert.Equal(t, "FairPrice", r.MerchantName())
	assert.Equal(t, "15/01/2024", FormatDate(r.Date()))
	assert.Equal(t, "12.50", FormatAmount(r.TotalCost()))
	assert.Equal(t, CategoryFood, r.Category())
	require.Len(t, r.Items(), 2)
	assert.Equal(t, 2, r.Items()[0].Quantity())
}

func TestNewReceiptRejectsBlankFields(t *testing.T) {
	tests := []struct {
		field string
		value any
	}{
		{"merchant_name", "   "},
		{"merchant_name", nil},
		{"date", ""},
		{"total_cost", " "},
		{"category", ""},
		{"itemized_list", []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			fields := validFields()
			fields[tt.field] = tt.value

			_, err := NewReceipt(fields)
			require.Error(t, err)

			var rerr *ReceiptError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, tt.field, rerr.Field)
			assert.Equal(t, "Field '"+tt.field+"' cannot be empty", rerr.Message)
		})
	}
}

func TestNewReceiptRejectsBlankItemName(t *testing.T) {
	fields := validFields()
	fields["itemized_list"] = []any{map[string]any{"item_name": " ", "item_cost": "1", "item_quantity": 1}}

	_, err := NewReceipt(fields)
	var rerr *ReceiptError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "item_name", rerr.Field)
}

func TestNewReceiptRejectsInvalidSentinel(t *testing.T) {
	fields := validFields()
	fields["category"] = "Invalid"

	_, err := NewReceipt(fields)
	require.EqualError(t, err, "Invalid category should only be used when the image is not a receipt")
}

func TestNewReceiptDefaultsMissingItemCost(t *testing.T) {
	fields := validFields()
	fields["itemized_list"] = []any{
		map[string]any{"item_name": "Mystery", "item_quantity": "abc"},
	}

	r, err := NewReceipt(fields)
	require.NoError(t, err)
	item := r.Items()[0]
	assert.Equal(t, "0.00", FormatAmount(item.Cost()))
	assert.Equal(t, 1, item.Quantity())
}

func TestNewReceiptDefaultsUnparsableItemCost(t *testing.T) {
	for _, raw := range []string{"free", "-", "N/A"} {
		t.Run(raw, func(t *testing.T) {
			fields := validFields()
			fields["itemized_list"] = []any{
				map[string]any{"item_name": "Tea", "item_cost": raw, "item_quantity": 1},
			}

			r, err := NewReceipt(fields)
			require.NoError(t, err)
			require.Len(t, r.Items(), 1)
			assert.Equal(t, "0.00", FormatAmount(r.Items()[0].Cost()))
			assert.Equal(t, "Tea", r.Items()[0].Name())
		})
	}
}

func TestReceiptItemsIsACopy(t *testing.T) {
	r, err := NewReceipt(validFields())
	require.NoError(t, err)

	items := r.Items()
	items[0] = Item{name: "changed"}
	assert.Equal(t, "Milk", r.Items()[0].Name())
}

func TestReceiptJSON(t *testing.T) {
	r, err := NewReceipt(validFields())
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"merchant_name": "FairPrice",
		"date": "15/01/2024",
		"total_cost": "12.50",
		"category": "Food",
		"itemized_list": [
			{"item_name": "Milk", "item_cost": "4.50", "item_quantity": 2},
			{"item_name": "Bread", "item_cost": "3.50", "item_quantity": 1}
		]
	}`, string(data))

	m := r.ToMap()
	assert.Equal(t, "Food", m["category"])
	assert.Len(t, m["itemized_list"], 2)
}

func TestReceiptToRecord(t *testing.T) {
	r, err := NewReceipt(validFields())
	require.NoError(t, err)

	rec := r.ToRecord("r-1", "u-1")
	assert.Equal(t, "2024-01-15", rec.Date)
	assert.Equal(t, LooseString("12.50"), rec.TotalCost)
	assert.Equal(t, LooseInt(2), rec.ItemizedList[0].ItemQuantity)
}

func TestStoredReceiptDecodesLooseValues(t *testing.T) {
	var rec StoredReceipt
	err := json.Unmarshal([]byte(`{
		"merchantName": "Grab",
		"date": "2024-02-01",
		"totalCost": 18.4,
		"category": "Transport",
		"itemizedList": [{"itemName": "Ride", "itemCost": null, "itemQuantity": "1.0"}]
	}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, LooseString("18.4"), rec.TotalCost)
	assert.Equal(t, "18.4", rec.TotalAmount().String())
	assert.Equal(t, LooseString(""), rec.ItemizedList[0].ItemCost)
	assert.Equal(t, LooseInt(1), rec.ItemizedList[0].ItemQuantity)
}

func TestLooseStringAmountCoercesGarbageToZero(t *testing.T) {
	assert.True(t, LooseString("n/a").Amount().IsZero())
	assert.True(t, LooseString("").Amount().IsZero())
	assert.Equal(t, "4.2", LooseString("$4.20").Amount().String())
}
