package persistence

import (
	"strings"
	"testing"
)

func TestBuildInsertQuery(t *testing.T) {
	q := buildInsertQuery(pageSpec)

	for _, want := range []string{
		"INSERT INTO pages",
		"slug, title, body, published",
		":slug, :title, :body, :published",
		"'unsynced'",
		"RETURNING id",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("insert query missing %q:\n%s", want, q)
		}
	}
}

func TestBuildUpdateQueryResetsSyncState(t *testing.T) {
	q := buildUpdateQuery(couponSpec)

	for _, want := range []string{
		"UPDATE coupons SET",
		"discount_type = :discount_type",
		"sync_status = 'unsynced'",
		"sync_error = NULL",
		"sync_attempts = 0",
		"next_retry_at = NULL",
		"WHERE id = :id",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("update query missing %q:\n%s", want, q)
		}
	}

	// Natural keys never change after creation.
	if strings.Contains(q, "code = :code") {
		t.Error("coupon update must not rewrite the code column")
	}
}

func TestTableSpecsCoverAllEntityTypes(t *testing.T) {
	specs := []TableSpec{commissionSpec, couponSpec, taxSettingSpec, pageSpec, faqSpec}
	seen := make(map[string]bool)
	for _, s := range specs {
		if s.Table == "" || s.EntityType == "" {
			t.Errorf("incomplete spec: %+v", s)
		}
		if len(s.InsertColumns) == 0 || len(s.UpdateColumns) == 0 {
			t.Errorf("spec %s has empty column lists", s.EntityType)
		}
		if seen[s.EntityType] {
			t.Errorf("duplicate entity type %s", s.EntityType)
		}
		seen[s.EntityType] = true
	}
}
