package cart

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

const (
	DefaultMaxQuantity  = 99
	DefaultCurrencyCode = "PLN"

	activeCartConstraint = "ux_carts_user_active"
)

// GuestLine is one entry of a cart built before the buyer signed in.
type GuestLine struct {
	ProductID string         `json:"productId"`
	Quantity  float64        `json:"quantity"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MergeResult reports how many products landed in the user's cart.
type MergeResult struct {
	CartID  uuid.UUID   `json:"cartId"`
	Merged  int         `json:"merged"`
	Skipped []GuestLine `json:"skipped"`
}

type aggregatedLine struct {
	productID uuid.UUID
	quantity  int
	metadata  map[string]any
}

// MergeService folds guest carts into the signed-in user's cart.
type MergeService struct {
	repo        CartRepository
	tx          txRunner
	logg        *logger.Logger
	maxQuantity int
	currency    string
}

// NewMergeService wires the merge flow. Zero maxQuantity and empty currency use the defaults.
func NewMergeService(repo CartRepository, tx txRunner, logg *logger.Logger, maxQuantity int, currency string) (*MergeService, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if maxQuantity <= 0 {
		maxQuantity = DefaultMaxQuantity
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrencyCode
	}
	return &MergeService{repo: repo, tx: tx, logg: logg, maxQuantity: maxQuantity, currency: currency}, nil
}

// MergeGuestCart adds guest quantities to the user's cart, capping each product at the max quantity.
// Prices and sellers always come from the catalog, never from the guest payload.
func (s *MergeService) MergeGuestCart(ctx context.Context, userID uuid.UUID, lines []GuestLine) (*MergeResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	skipped := make([]GuestLine, 0)
	aggregated, order := s.aggregate(lines, &skipped)

	result := &MergeResult{Skipped: skipped}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.getOrCreateCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		result.CartID = cart.ID

		if len(order) == 0 {
			return nil
		}

		products, err := repo.FindActiveProducts(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unable to load products")
		}
		catalog := make(map[uuid.UUID]models.Product, len(products))
		for _, p := range products {
			catalog[p.ID] = p
		}

		existingItems, err := repo.ListItems(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unable to load cart items")
		}
		existing := make(map[uuid.UUID]models.CartItem, len(existingItems))
		for _, item := range existingItems {
			existing[item.ProductID] = item
		}

		upserts := make([]models.CartItem, 0, len(order))
		for _, productID := range order {
			line := aggregated[productID]
			product, ok := catalog[productID]
			if !ok || !strings.EqualFold(product.CurrencyCode, cart.CurrencyCode) {
				result.Skipped = append(result.Skipped, GuestLine{ProductID: productID.String(), Quantity: float64(line.quantity), Metadata: line.metadata})
				continue
			}

			tenantID := product.TenantID
			price := product.Price
			row := models.CartItem{
				CartID:       cart.ID,
				TenantID:     &tenantID,
				ProductID:    productID,
				Quantity:     line.quantity,
				UnitPrice:    &price,
				CurrencyCode: strings.ToUpper(cart.CurrencyCode),
				Metadata:     types.JSONMap(line.metadata),
			}
			if current, ok := existing[productID]; ok {
				row.ID = current.ID
				row.Quantity = min(current.Quantity+line.quantity, s.maxQuantity)
				if row.Metadata == nil {
					row.Metadata = current.Metadata
				}
			}
			if row.Metadata == nil {
				row.Metadata = types.JSONMap{}
			}
			upserts = append(upserts, row)
		}

		if err := repo.UpsertItems(ctx, upserts); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unable to merge cart items")
		}
		result.Merged = len(upserts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"cart_id": result.CartID.String(),
		"merged":  result.Merged,
		"skipped": len(result.Skipped),
	})
	s.logg.Info(ctx, "cart.guest_merged")
	return result, nil
}

func (s *MergeService) aggregate(lines []GuestLine, skipped *[]GuestLine) (map[uuid.UUID]*aggregatedLine, []uuid.UUID) {
	aggregated := make(map[uuid.UUID]*aggregatedLine, len(lines))
	order := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		productID, err := uuid.Parse(strings.TrimSpace(line.ProductID))
		if err != nil || productID == uuid.Nil {
			*skipped = append(*skipped, line)
			continue
		}
		quantity := normaliseQuantity(line.Quantity, s.maxQuantity)
		if quantity <= 0 {
			*skipped = append(*skipped, line)
			continue
		}

		current, ok := aggregated[productID]
		if !ok {
			current = &aggregatedLine{productID: productID}
			aggregated[productID] = current
			order = append(order, productID)
		}
		current.quantity = min(current.quantity+quantity, s.maxQuantity)
		if line.Metadata != nil {
			current.metadata = line.Metadata
		}
	}
	return aggregated, order
}

func (s *MergeService) getOrCreateCart(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindActiveByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unable to load cart")
	}

	cart, err = repo.Create(ctx, &models.Cart{
		UserID:       userID,
		CurrencyCode: s.currency,
		Metadata:     types.JSONMap{},
	})
	if err != nil {
		if db.IsUniqueViolation(err, activeCartConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart was created concurrently, retry the merge")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unable to create cart")
	}
	return cart, nil
}

func normaliseQuantity(quantity float64, maxQuantity int) int {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return 0
	}
	floored := math.Floor(quantity)
	if floored < 1 {
		return 0
	}
	if floored > float64(maxQuantity) {
		return maxQuantity
	}
	return int(floored)
}
