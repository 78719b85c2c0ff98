package domain

import "time"

// Page is a CMS content page (terms, privacy, help articles). The slug is the
// natural key and the replica document key.
type Page struct {
	ID        int64     `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	Published bool      `db:"published" json:"published"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	SyncMeta
}

func (p *Page) EntityType() string { return EntityTypePage }
func (p *Page) Collection() string { return EntityTypePage }

func (p *Page) DocumentKey() string { return p.Slug }

func (p *Page) Fields() map[string]any {
	return map[string]any{
		"id":         p.ID,
		"slug":       p.Slug,
		"title":      p.Title,
		"body":       p.Body,
		"published":  p.Published,
		"updated_at": p.UpdatedAt,
	}
}

func (p *Page) Meta() *SyncMeta         { return &p.SyncMeta }
func (p *Page) RowID() int64            { return p.ID }
func (p *Page) RowUpdatedAt() time.Time { return p.UpdatedAt }
