package domain

import "time"

// ConversionMetadata is opaque to pricing; it is persisted only for
// audit and analytics joins.
type ConversionMetadata struct {
	UserID         string
	PhoneNumber    string
	TransactionRef string
	Origin         string
}

// ConversionRecord is one priced conversion. It is immutable once
// created and append-only in storage.
type ConversionRecord struct {
	ID              string
	Pair            Pair
	From            Currency
	To              Currency
	OriginalAmount  float64
	ConvertedAmount float64
	BaseRate        float64
	RateWithMarkup  float64
	MarkupPercent   float64
	MarkupAmount    float64
	Profit          ProfitBreakdown
	Provider        string
	Metadata        ConversionMetadata
	CreatedAt       time.Time
}
