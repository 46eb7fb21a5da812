package settings

import (
	"context"
	"slices"
	"time"

	"jrr/book"
)

// Library is cached listing of books available to the user.
type Library struct {
	CachedAt time.Time   `json:"cached_at"`
	Items    []book.Book `json:"items"`
}

// Fresh reports whether listing was cached less than ttl ago.
func (l *Library) Fresh(ttl time.Duration, now time.Time) bool {
	return l != nil && !l.CachedAt.IsZero() && now.Sub(l.CachedAt) < ttl
}

// Find returns cached book by id.
func (l *Library) Find(id string) (*book.Book, bool) {
	if l == nil {
		return nil, false
	}
	i := slices.IndexFunc(l.Items, func(b book.Book) bool { return b.ID == id })
	if i < 0 {
		return nil, false
	}
	return &l.Items[i], true
}

// LoadLibrary returns cached listing, empty one when nothing is cached.
func LoadLibrary(ctx context.Context, s Store) (*Library, error) {
	var l Library
	if _, err := s.Get(ctx, KeyLibrary, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// SaveLibrary stores listing stamping it with current time.
func SaveLibrary(ctx context.Context, s Store, items []book.Book) error {
	return s.Set(ctx, KeyLibrary, Library{CachedAt: time.Now().UTC(), Items: items})
}

// UpdateBook replaces (or adds) single book in cached listing keeping cache
// time intact.
func UpdateBook(ctx context.Context, s Store, b *book.Book) error {
	l, err := LoadLibrary(ctx, s)
	if err != nil {
		return err
	}
	if old, ok := l.Find(b.ID); ok {
		*old = *b
	} else {
		l.Items = append(l.Items, *b)
	}
	return s.Set(ctx, KeyLibrary, l)
}
