package persistence

import (
	"github.com/jmoiron/sqlx"

	"mirror_sync/core/domain"
)

// Table specs for the five mirrored tables. Insert and update lists name
// business columns only; id, timestamps and sync bookkeeping are owned by the
// adapter queries.

var commissionSpec = TableSpec{
	Table:      "commissions",
	EntityType: domain.EntityTypeCommission,
	InsertColumns: []string{
		"vehicle_type", "rate_percent", "flat_fee", "zones",
		"active", "effective_from", "effective_until",
	},
	UpdateColumns: []string{
		"vehicle_type", "rate_percent", "flat_fee", "zones",
		"active", "effective_from", "effective_until",
	},
}

var couponSpec = TableSpec{
	Table:      "coupons",
	EntityType: domain.EntityTypeCoupon,
	InsertColumns: []string{
		"code", "discount_type", "discount_value", "max_discount", "min_fare",
		"valid_from", "valid_until", "usage_limit", "zones", "vehicle_types", "active",
	},
	UpdateColumns: []string{
		"discount_type", "discount_value", "max_discount", "min_fare",
		"valid_from", "valid_until", "usage_limit", "zones", "vehicle_types", "active",
	},
}

var taxSettingSpec = TableSpec{
	Table:      "tax_settings",
	EntityType: domain.EntityTypeTaxSetting,
	InsertColumns: []string{
		"name", "region", "rate_percent", "inclusive", "service_categories", "active",
	},
	UpdateColumns: []string{
		"name", "region", "rate_percent", "inclusive", "service_categories", "active",
	},
}

var pageSpec = TableSpec{
	Table:         "pages",
	EntityType:    domain.EntityTypePage,
	InsertColumns: []string{"slug", "title", "body", "published"},
	UpdateColumns: []string{"title", "body", "published"},
}

var faqSpec = TableSpec{
	Table:         "faqs",
	EntityType:    domain.EntityTypeFAQ,
	InsertColumns: []string{"question", "answer", "category", "sort_order", "tags", "active"},
	UpdateColumns: []string{"question", "answer", "category", "sort_order", "tags", "active"},
}

func NewCommissionAdapter(db *sqlx.DB) *EntityAdapter[*domain.Commission] {
	return NewEntityAdapter[*domain.Commission](db, commissionSpec)
}

func NewCouponAdapter(db *sqlx.DB) *EntityAdapter[*domain.Coupon] {
	return NewEntityAdapter[*domain.Coupon](db, couponSpec)
}

func NewTaxSettingAdapter(db *sqlx.DB) *EntityAdapter[*domain.TaxSetting] {
	return NewEntityAdapter[*domain.TaxSetting](db, taxSettingSpec)
}

func NewPageAdapter(db *sqlx.DB) *EntityAdapter[*domain.Page] {
	return NewEntityAdapter[*domain.Page](db, pageSpec)
}

func NewFAQAdapter(db *sqlx.DB) *EntityAdapter[*domain.FAQ] {
	return NewEntityAdapter[*domain.FAQ](db, faqSpec)
}
