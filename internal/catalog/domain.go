// Package catalog manages movies, watchlists and viewing history.
package catalog

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/marquee-ott/marquee/internal/shared"
)

// ErrMovieNotFound is returned when a movie id does not exist.
var ErrMovieNotFound = fmt.Errorf("catalog: movie %w", shared.ErrNotFound)

// ErrInvalidMovie wraps validation failures.
var ErrInvalidMovie = errors.New("catalog: invalid movie")

// HomeDescriptionLimit caps descriptions in the home rail, in characters.
const HomeDescriptionLimit = 120

// Movie is a catalog entry. Media fields hold object keys, not URLs.
type Movie struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ViewCount    int64     `json:"view_count"`
	ThumbnailKey string    `json:"thumbnail_key"`
	VideoKey     string    `json:"video_key"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MovieInput carries the editable text fields of a movie.
type MovieInput struct {
	Title       string `validate:"required,max=100"`
	Description string `validate:"max=10000"`
}

// MediaChange lists newly uploaded objects for a movie. Empty keys leave the
// current object in place.
type MediaChange struct {
	ThumbnailKey string
	VideoKey     string
}

// HistoryEntry is one recorded view.
type HistoryEntry struct {
	Movie    Movie
	ViewedAt time.Time
}

// Truncate shortens s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
