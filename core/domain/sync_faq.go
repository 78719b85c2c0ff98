package domain

import (
	"strconv"
	"time"

	"github.com/lib/pq"
)

// FAQ is a help-center question/answer entry.
type FAQ struct {
	ID        int64          `db:"id" json:"id"`
	Question  string         `db:"question" json:"question"`
	Answer    string         `db:"answer" json:"answer"`
	Category  string         `db:"category" json:"category"`
	SortOrder int            `db:"sort_order" json:"sort_order"`
	Tags      pq.StringArray `db:"tags" json:"tags"`
	Active    bool           `db:"active" json:"active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`

	SyncMeta
}

func (f *FAQ) EntityType() string { return EntityTypeFAQ }
func (f *FAQ) Collection() string { return EntityTypeFAQ }

func (f *FAQ) DocumentKey() string { return strconv.FormatInt(f.ID, 10) }

func (f *FAQ) Fields() map[string]any {
	return map[string]any{
		"id":         f.ID,
		"question":   f.Question,
		"answer":     f.Answer,
		"category":   f.Category,
		"sort_order": f.SortOrder,
		"tags":       []string(f.Tags),
		"active":     f.Active,
		"updated_at": f.UpdatedAt,
	}
}

func (f *FAQ) Meta() *SyncMeta         { return &f.SyncMeta }
func (f *FAQ) RowID() int64            { return f.ID }
func (f *FAQ) RowUpdatedAt() time.Time { return f.UpdatedAt }
