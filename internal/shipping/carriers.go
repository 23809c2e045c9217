// Package shipping holds the carrier catalogue and tracking URL rules.
package shipping

import (
	"errors"
	"net/url"
	"strings"
	"unicode"
)

const (
	trackingPlaceholder   = "{tracking}"
	defaultShippingMethod = "Manual shipping"
)

var (
	ErrUnknownCarrier      = errors.New("unsupported carrier")
	ErrTrackingRequired    = errors.New("tracking number is required")
	ErrInvalidTrackingURL  = errors.New("invalid tracking URL")
	ErrInsecureTrackingURL = errors.New("tracking URL must use HTTPS")
	ErrManualURLRequired   = errors.New("carrier requires a manual tracking URL")
)

// Carrier describes a parcel service; an empty URLTemplate means tracking links are supplied by the seller.
type Carrier struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	URLTemplate string `json:"urlTemplate,omitempty"`
}

var carriers = []Carrier{
	{ID: "inpost", Label: "InPost", URLTemplate: "https://inpost.pl/sledzenie-przesylek?number={tracking}"},
	{ID: "dpd", Label: "DPD Polska", URLTemplate: "https://tracktrace.dpd.com.pl/parcelDetails?typ=1&p1={tracking}"},
	{ID: "dhl", Label: "DHL Parcel", URLTemplate: "https://www.dhl.com/pl-pl/home/narzedzia-do-wysylki/sledzenie.html?piececode={tracking}"},
	{ID: "ups", Label: "UPS", URLTemplate: "https://www.ups.com/track?loc=pl_PL&tracknum={tracking}"},
	{ID: "gls", Label: "GLS", URLTemplate: "https://gls-group.eu/pl/pl/sledzenie-przesylki?match={tracking}"},
	{ID: "fedex", Label: "FedEx", URLTemplate: "https://www.fedex.com/fedextrack/?trknbr={tracking}"},
	{ID: "poczta_polska", Label: "Poczta Polska", URLTemplate: "https://emonitoring.poczta-polska.pl/?numer={tracking}"},
	{ID: "other", Label: "Inny przewoźnik"},
}

// Carriers lists every supported carrier.
func Carriers() []Carrier {
	out := make([]Carrier, len(carriers))
	copy(out, carriers)
	return out
}

// Lookup finds a carrier by id.
func Lookup(id string) (Carrier, bool) {
	id = strings.TrimSpace(id)
	for _, c := range carriers {
		if c.ID == id {
			return c, true
		}
	}
	return Carrier{}, false
}

// SanitizeTrackingNumber strips all whitespace and upper-cases the value.
func SanitizeTrackingNumber(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// NormalizeTrackingURL returns "" for blank input and rejects anything but absolute https URLs.
func NormalizeTrackingURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", ErrInvalidTrackingURL
	}
	if parsed.Scheme != "https" {
		return "", ErrInsecureTrackingURL
	}
	return parsed.String(), nil
}

// BuildTrackingURL fills the carrier template; template-less carriers fall back to customURL.
func BuildTrackingURL(carrier Carrier, trackingNumber, customURL string) (string, error) {
	if trackingNumber == "" {
		return "", ErrTrackingRequired
	}
	if carrier.URLTemplate == "" {
		if customURL == "" {
			return "", ErrManualURLRequired
		}
		return customURL, nil
	}
	return strings.Replace(carrier.URLTemplate, trackingPlaceholder, url.QueryEscape(trackingNumber), 1), nil
}

// ResolveShippingMethod prefers the seller supplied label, then the carrier label.
func ResolveShippingMethod(carrier Carrier, provided string) string {
	if trimmed := strings.TrimSpace(provided); trimmed != "" {
		return trimmed
	}
	if carrier.Label != "" {
		return carrier.Label
	}
	return defaultShippingMethod
}

// Shipment is a validated shipping update ready to persist.
type Shipment struct {
	Carrier        Carrier
	ShippingMethod string
	TrackingNumber string
	TrackingURL    string
}

// ResolveShipment validates seller input into a Shipment.
func ResolveShipment(carrierID, trackingNumber, trackingURL, shippingMethod string) (Shipment, error) {
	carrier, ok := Lookup(carrierID)
	if !ok {
		return Shipment{}, ErrUnknownCarrier
	}
	number := SanitizeTrackingNumber(trackingNumber)
	if number == "" {
		return Shipment{}, ErrTrackingRequired
	}
	custom, err := NormalizeTrackingURL(trackingURL)
	if err != nil {
		return Shipment{}, err
	}
	link, err := BuildTrackingURL(carrier, number, custom)
	if err != nil {
		return Shipment{}, err
	}
	return Shipment{
		Carrier:        carrier,
		ShippingMethod: ResolveShippingMethod(carrier, shippingMethod),
		TrackingNumber: number,
		TrackingURL:    link,
	}, nil
}
