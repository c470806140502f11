package models

// EntityRecord is one covered company. Records are built once from the
// entity table and shared read-only for the life of the process.
type EntityRecord struct {
	Slug   string `json:"slug" yaml:"slug"`     // Screener.in company path segment, e.g. "TCS/consolidated"
	Name   string `json:"name" yaml:"name"`     // Display name, e.g. "Tata Consultancy Services Ltd."
	Symbol string `json:"symbol" yaml:"symbol"` // NSE symbol, e.g. "TCS"
}
