package domain

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable bool            `json:"is_available"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewProduct(name, description, category string, price decimal.Decimal, stock int) (*Product, error) {
	now := time.Now().UTC()
	p := &Product{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Description: description,
		Category:    category,
		Price:       price,
		IsAvailable: true,
		Stock:       stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Product) Validate() error {
	if p.Name == "" {
		return validationErrorf("product name is required")
	}
	if p.Price.IsNegative() {
		return validationErrorf("product price must not be negative")
	}
	if p.Stock < 0 {
		return validationErrorf("product stock must not be negative")
	}

	return nil
}

// StockReservation asks for Quantity units of ProductID to be taken out of stock.
type StockReservation struct {
	ProductID uuid.UUID
	Quantity  int
}

// MergeReservations sums quantities per product and orders the result by product id,
// so concurrent reservations lock rows in the same order. A total that would pass
// math.MaxInt32, the stock column range, is clamped there.
func MergeReservations(reservations []StockReservation) []StockReservation {
	totals := make(map[uuid.UUID]int, len(reservations))
	for _, r := range reservations {
		if r.Quantity > math.MaxInt32-totals[r.ProductID] {
			totals[r.ProductID] = math.MaxInt32
			continue
		}
		totals[r.ProductID] += r.Quantity
	}

	merged := make([]StockReservation, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, StockReservation{ProductID: id, Quantity: qty})
	}

	slices.SortFunc(merged, func(a, b StockReservation) int {
		return strings.Compare(a.ProductID.String(), b.ProductID.String())
	})

	return merged
}

type UpdateProductInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	IsAvailable *bool            `json:"is_available"`
}

// Apply copies the set fields onto p and validates the result.
func (in UpdateProductInput) Apply(p *Product) error {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.IsAvailable != nil {
		p.IsAvailable = *in.IsAvailable
	}

	return p.Validate()
}
