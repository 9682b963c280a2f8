package constants

import (
	"strings"
)

// Category is a coarse spending bucket suggested from the merchant name.
type Category string

const (
	Food      Category = "Food"
	Groceries Category = "Groceries"
	Transport Category = "Transport"
	Shopping  Category = "Shopping"
)

// categoryKeywords is checked in order; the first category with a keyword
// contained in the merchant name wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{Food, []string{"food", "kitchen", "restaurant", "cafe", "bhat", "pizza", "bakery", "momo"}},
	{Groceries, []string{"mart", "store", "market", "grocery", "kirana", "bhandar", "supermarket"}},
	{Transport, []string{"fuel", "petrol", "taxi", "ride", "pathao", "diesel"}},
}

// CategoryForMerchant suggests a category from a merchant name. Unknown or
// empty names fall back to Shopping.
func CategoryForMerchant(merchant string) Category {
	m := strings.ToLower(strings.TrimSpace(merchant))
	if m == "" {
		return Shopping
	}
	for _, ck := range categoryKeywords {
		for _, k := range ck.keywords {
			if strings.Contains(m, k) {
				return ck.category
			}
		}
	}
	return Shopping
}
