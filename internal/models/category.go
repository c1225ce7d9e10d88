package models

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryTransport  Category = "Transport"
	CategoryClothing   Category = "Clothing"
	CategoryHealthcare Category = "Healthcare"
	CategoryFood       Category = "Food"
	CategoryLeisure    Category = "Leisure"
	CategoryHousing    Category = "Housing"
	CategoryOthers     Category = "Others"
	// CategoryInvalid is reported by the model when the image is not a receipt.
	CategoryInvalid Category = "Invalid"
)

// AllCategories lists every category in declaration order, sentinel last.
var AllCategories = []Category{
	CategoryTransport,
	CategoryClothing,
	CategoryHealthcare,
	CategoryFood,
	CategoryLeisure,
	CategoryHousing,
	CategoryOthers,
	CategoryInvalid,
}

// SpendingCategories is AllCategories without the Invalid sentinel.
func SpendingCategories() []Category {
	out := make([]Category, 0, len(AllCategories)-1)
	for _, c := range AllCategories {
		if c != CategoryInvalid {
			out = append(out, c)
		}
	}
	return out
}

// ValidateCategory accepts exactly one of the spending categories.
func ValidateCategory(value string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) != value {
			continue
		}
		if c == CategoryInvalid {
			return "", &ReceiptError{
				Field:   "category",
				Message: "Invalid category should only be used when the image is not a receipt",
			}
		}
		return c, nil
	}

	names := make([]string, 0, len(AllCategories))
	for _, c := range SpendingCategories() {
		names = append(names, string(c))
	}
	return "", &ReceiptError{
		Field:   "category",
		Message: fmt.Sprintf("Invalid category '%s'. The valid categories are: %s", value, strings.Join(names, ", ")),
	}
}
