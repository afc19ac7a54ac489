// Package catalog is the demo domain driven by the furrow CLI: a products
// table with soft deletion and audit columns.
package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/mapping"
)

// Table is where products live.
var Table = core.Table{Name: "products", AutoKey: true}

// Product is a sellable item.
type Product struct {
	ID         int64     `db:"id" json:"id"`
	SKU        string    `db:"sku" json:"sku"`
	Name       string    `db:"name" json:"name"`
	PriceCents int64     `db:"price_cents" json:"price_cents"`
	Active     bool      `db:"active" json:"active"`
	CreatedBy  string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy  string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Product) GetID() int64      { return p.ID }
func (p *Product) SetID(id int64)    { p.ID = id }
func (p *Product) IsActive() bool    { return p.Active }
func (p *Product) SetActive(on bool) { p.Active = on }

func (p *Product) StampCreated(by string, at time.Time) {
	p.CreatedBy, p.CreatedAt = by, at
	p.UpdatedBy, p.UpdatedAt = by, at
}

func (p *Product) StampUpdated(by string, at time.Time) {
	p.UpdatedBy, p.UpdatedAt = by, at
}

// ProductInput is the payload accepted when creating a product.
type ProductInput struct {
	SKU        string `json:"sku" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=200"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`
}

// ProductView is the public read model.
type ProductView struct {
	ID         int64  `db:"id" json:"id"`
	SKU        string `db:"sku" json:"sku"`
	Name       string `db:"name" json:"name"`
	PriceCents int64  `db:"price_cents" json:"price_cents"`
	Active     bool   `db:"active" json:"active"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewProduct validates in and builds an active product from it.
func NewProduct(in ProductInput) (*Product, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return &Product{SKU: in.SKU, Name: in.Name, PriceCents: in.PriceCents, Active: true}, nil
}

// RegisterMappings installs the catalog conversions on m.
func RegisterMappings(m *mapping.Default) {
	mapping.Register(m, NewProduct)
	mapping.Register(m, func(in *ProductInput) (*Product, error) {
		return NewProduct(*in)
	})
}

// Active selects products that have not been disabled.
func Active() core.Spec {
	return core.Where(core.Eq("active", true))
}

// BySKU selects the product with the given stock keeping unit.
func BySKU(sku string) core.Spec {
	return core.Where(core.Eq("sku", sku))
}

// Named selects products whose name contains fragment, case-insensitively.
func Named(fragment string) core.Spec {
	return core.Where(core.Like("name", "%"+fragment+"%"))
}
