package domain

import (
	"time"

	"github.com/lib/pq"
)

// Coupon discount kinds.
const (
	DiscountTypePercent = "percent"
	DiscountTypeFlat    = "flat"
)

// Coupon is a promotional discount code. The code is the natural key and
// doubles as the replica document key.
type Coupon struct {
	ID            int64          `db:"id" json:"id"`
	Code          string         `db:"code" json:"code"`
	DiscountType  string         `db:"discount_type" json:"discount_type"`
	DiscountValue float64        `db:"discount_value" json:"discount_value"`
	MaxDiscount   *float64       `db:"max_discount" json:"max_discount,omitempty"`
	MinFare       *float64       `db:"min_fare" json:"min_fare,omitempty"`
	ValidFrom     *time.Time     `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil    *time.Time     `db:"valid_until" json:"valid_until,omitempty"`
	UsageLimit    int            `db:"usage_limit" json:"usage_limit"`
	Zones         pq.StringArray `db:"zones" json:"zones"`
	VehicleTypes  pq.StringArray `db:"vehicle_types" json:"vehicle_types"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`

	SyncMeta
}

func (c *Coupon) EntityType() string { return EntityTypeCoupon }
func (c *Coupon) Collection() string { return EntityTypeCoupon }

func (c *Coupon) DocumentKey() string { return c.Code }

func (c *Coupon) Fields() map[string]any {
	return map[string]any{
		"id":             c.ID,
		"code":           c.Code,
		"discount_type":  c.DiscountType,
		"discount_value": c.DiscountValue,
		"max_discount":   c.MaxDiscount,
		"min_fare":       c.MinFare,
		"valid_from":     c.ValidFrom,
		"valid_until":    c.ValidUntil,
		"usage_limit":    c.UsageLimit,
		"zones":          []string(c.Zones),
		"vehicle_types":  []string(c.VehicleTypes),
		"active":         c.Active,
		"updated_at":     c.UpdatedAt,
	}
}

func (c *Coupon) Meta() *SyncMeta         { return &c.SyncMeta }
func (c *Coupon) RowID() int64            { return c.ID }
func (c *Coupon) RowUpdatedAt() time.Time { return c.UpdatedAt }

// ValidAt reports whether the coupon can be redeemed at the given instant.
func (c *Coupon) ValidAt(t time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ValidFrom != nil && t.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && t.After(*c.ValidUntil) {
		return false
	}
	return true
}
