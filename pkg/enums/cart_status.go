package enums

// CartStatus tracks whether a cart can still be checked out. Merged and converted
// carts are read-only.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusMerged    CartStatus = "merged"
	CartStatusConverted CartStatus = "converted"
)

var cartStatuses = []CartStatus{CartStatusActive, CartStatusMerged, CartStatusConverted}

func (s CartStatus) String() string { return string(s) }

func (s CartStatus) IsValid() bool { return member(cartStatuses, s) }

func ParseCartStatus(value string) (CartStatus, error) {
	return parse(cartStatuses, "cart status", value)
}
