package models

import (
	"fmt"
	"strings"
)

// Category classifies a transfer for reporting. It is persisted by name.
type Category string

const (
	CategoryFood            Category = "Food"
	CategoryTransport       Category = "Transport"
	CategoryUtilities       Category = "Utilities"
	CategoryEntertainment   Category = "Entertainment"
	CategoryFeePayment      Category = "FeePayment"
	CategoryElectricityBill Category = "ElectricityBill"
	CategoryGasBill         Category = "GasBill"
	CategoryMaintenanceBill Category = "MaintenanceBill"
	CategoryGroceries       Category = "Groceries"
	CategoryOther           Category = "Other"
)

var categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryFeePayment,
	CategoryElectricityBill,
	CategoryGasBill,
	CategoryMaintenanceBill,
	CategoryGroceries,
	CategoryOther,
}

// Categories returns the closed set of categories in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory maps a name onto its canonical Category, ignoring case.
func ParseCategory(raw string) (Category, error) {
	name := strings.TrimSpace(raw)
	for _, c := range categories {
		if strings.EqualFold(string(c), name) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}
