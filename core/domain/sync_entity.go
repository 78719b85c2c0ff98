package domain

import "time"

// =============================================================================
// Syncable - contract every mirrored entity implements
// =============================================================================

// Syncable is implemented by every entity mirrored into the document replica.
// The generic persistence adapter, the serializer and the executor all work
// against this interface instead of concrete entity types.
type Syncable interface {
	// EntityType is the stable type name used in jobs, stats and routes.
	EntityType() string
	// Collection is the replica collection documents of this type land in.
	Collection() string
	// DocumentKey is the stable replica document key (numeric ID or natural key).
	DocumentKey() string
	// Fields returns the business fields to mirror, before serialization.
	Fields() map[string]any
	// Meta exposes the embedded sync bookkeeping for in-place updates.
	Meta() *SyncMeta
	// RowID is the relational primary key.
	RowID() int64
	// RowUpdatedAt is the optimistic concurrency token for MarkSynced.
	RowUpdatedAt() time.Time
}

// Entity type names. Also used as replica collection names and route params.
const (
	EntityTypeCommission = "commissions"
	EntityTypeCoupon     = "coupons"
	EntityTypeTaxSetting = "tax_settings"
	EntityTypePage       = "pages"
	EntityTypeFAQ        = "faqs"
)

// EntityTypes lists every mirrored type in registry order.
var EntityTypes = []string{
	EntityTypeCommission,
	EntityTypeCoupon,
	EntityTypeTaxSetting,
	EntityTypePage,
	EntityTypeFAQ,
}
