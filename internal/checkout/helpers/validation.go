package helpers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

const (
	MaxNoteLength         = 800
	MaxPhoneLength        = 32
	MaxAddressFieldLength = 160
)

// ErrMixedCurrencyCart is returned when a line is priced in another currency than its cart.
var ErrMixedCurrencyCart = errors.New("cart contains items with different currencies")

// AddressFields is the whitelist kept from buyer supplied addresses.
var AddressFields = []string{
	"fullName",
	"company",
	"line1",
	"line2",
	"postalCode",
	"city",
	"region",
	"country",
	"taxId",
}

// EnsureSingleCurrency fails on the first item whose currency differs from the cart.
func EnsureSingleCurrency(items []NormalizedItem, cartCurrency string) error {
	for _, item := range items {
		if item.CurrencyCode != cartCurrency {
			return fmt.Errorf("%w: cart %s, item %s uses %s", ErrMixedCurrencyCart, cartCurrency, item.CartItemID, item.CurrencyCode)
		}
	}
	return nil
}

// SanitizeNote trims the buyer note; blank notes become nil.
func SanitizeNote(value *string) *string {
	return trimOptional(value, MaxNoteLength)
}

// SanitizePhone trims the contact phone; blank values become nil.
func SanitizePhone(value *string) *string {
	return trimOptional(value, MaxPhoneLength)
}

// SanitizeAddress keeps whitelisted string fields, trimmed and truncated.
// Anything else in the input is dropped; the result may be empty but never nil.
func SanitizeAddress(value map[string]any) types.Address {
	out := types.Address{}
	for _, field := range AddressFields {
		raw, ok := value[field].(string)
		if !ok {
			continue
		}
		trimmed := truncate(strings.TrimSpace(raw), MaxAddressFieldLength)
		if trimmed == "" {
			continue
		}
		out[field] = trimmed
	}
	return out
}

// ResolveLocale takes the first non-nil candidate and returns it when supported.
// An unsupported candidate resolves to fallback; later candidates are not consulted.
func ResolveLocale(supported []string, fallback string, candidates ...*string) string {
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		value := strings.ToLower(strings.TrimSpace(*candidate))
		for _, locale := range supported {
			if value == strings.ToLower(strings.TrimSpace(locale)) {
				return value
			}
		}
		return strings.ToLower(strings.TrimSpace(fallback))
	}
	return strings.ToLower(strings.TrimSpace(fallback))
}

func trimOptional(value *string, maxLen int) *string {
	if value == nil {
		return nil
	}
	trimmed := truncate(strings.TrimSpace(*value), maxLen)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func truncate(value string, maxLen int) string {
	runes := []rune(value)
	if len(runes) <= maxLen {
		return value
	}
	return string(runes[:maxLen])
}
