package domain

import (
	"strconv"
	"time"

	"github.com/lib/pq"
)

// Commission is a per-vehicle-type commission rule applied to completed rides.
type Commission struct {
	ID             int64          `db:"id" json:"id"`
	VehicleType    string         `db:"vehicle_type" json:"vehicle_type"`
	RatePercent    float64        `db:"rate_percent" json:"rate_percent"`
	FlatFee        float64        `db:"flat_fee" json:"flat_fee"`
	Zones          pq.StringArray `db:"zones" json:"zones"`
	Active         bool           `db:"active" json:"active"`
	EffectiveFrom  *time.Time     `db:"effective_from" json:"effective_from,omitempty"`
	EffectiveUntil *time.Time     `db:"effective_until" json:"effective_until,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`

	SyncMeta
}

func (c *Commission) EntityType() string { return EntityTypeCommission }
func (c *Commission) Collection() string { return EntityTypeCommission }

func (c *Commission) DocumentKey() string { return strconv.FormatInt(c.ID, 10) }

func (c *Commission) Fields() map[string]any {
	return map[string]any{
		"id":              c.ID,
		"vehicle_type":    c.VehicleType,
		"rate_percent":    c.RatePercent,
		"flat_fee":        c.FlatFee,
		"zones":           []string(c.Zones),
		"active":          c.Active,
		"effective_from":  c.EffectiveFrom,
		"effective_until": c.EffectiveUntil,
		"updated_at":      c.UpdatedAt,
	}
}

func (c *Commission) Meta() *SyncMeta         { return &c.SyncMeta }
func (c *Commission) RowID() int64            { return c.ID }
func (c *Commission) RowUpdatedAt() time.Time { return c.UpdatedAt }

// EffectiveAt reports whether the rule applies at the given instant.
func (c *Commission) EffectiveAt(t time.Time) bool {
	if !c.Active {
		return false
	}
	if c.EffectiveFrom != nil && t.Before(*c.EffectiveFrom) {
		return false
	}
	if c.EffectiveUntil != nil && t.After(*c.EffectiveUntil) {
		return false
	}
	return true
}
