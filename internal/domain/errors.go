package domain

import "errors"

var (
	ErrUnsupportedPair     = errors.New("unsupported currency pair")
	ErrInvalidAmount       = errors.New("amount must be greater than 0")
	ErrInvalidRate         = errors.New("invalid rate")
	ErrNoProviderAvailable = errors.New("all rate providers failed")
	ErrMarkupOutOfBounds   = errors.New("markup outside allowed bounds")
	ErrInvalidProfitSplit  = errors.New("profit split fractions must sum to 1.0")
)
