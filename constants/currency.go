package constants

// Currency is an ISO-4217 code supported by the extraction engine.
type Currency string

const (
	HKD Currency = "HKD"
	CNY Currency = "CNY"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	NPR Currency = "NPR"
)

// DefaultCurrency is reported when no currency marker is found on a receipt.
const DefaultCurrency = NPR
