package domain

import (
	"strconv"
	"time"

	"github.com/lib/pq"
)

// TaxSetting is a regional tax rule applied to fares.
type TaxSetting struct {
	ID                int64          `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	Region            string         `db:"region" json:"region"`
	RatePercent       float64        `db:"rate_percent" json:"rate_percent"`
	Inclusive         bool           `db:"inclusive" json:"inclusive"`
	ServiceCategories pq.StringArray `db:"service_categories" json:"service_categories"`
	Active            bool           `db:"active" json:"active"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`

	SyncMeta
}

func (t *TaxSetting) EntityType() string { return EntityTypeTaxSetting }
func (t *TaxSetting) Collection() string { return EntityTypeTaxSetting }

func (t *TaxSetting) DocumentKey() string { return strconv.FormatInt(t.ID, 10) }

func (t *TaxSetting) Fields() map[string]any {
	return map[string]any{
		"id":                 t.ID,
		"name":               t.Name,
		"region":             t.Region,
		"rate_percent":       t.RatePercent,
		"inclusive":          t.Inclusive,
		"service_categories": []string(t.ServiceCategories),
		"active":             t.Active,
		"updated_at":         t.UpdatedAt,
	}
}

func (t *TaxSetting) Meta() *SyncMeta         { return &t.SyncMeta }
func (t *TaxSetting) RowID() int64            { return t.ID }
func (t *TaxSetting) RowUpdatedAt() time.Time { return t.UpdatedAt }
