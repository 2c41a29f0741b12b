package store

import (
	"context"
	"errors"

	"github.com/bobby-s-dev/species-archive/internal/models"
)

var ErrNotFound = errors.New("not found")

const historyLimit = 50

// FavoritesStore keeps per-user favorites and search history. It is updated
// by the outer surfaces after a record has been obtained; the aggregator
// never touches it.
type FavoritesStore interface {
	SaveFavorite(ctx context.Context, userID string, record *models.SpeciesRecord) error
	RemoveFavorite(ctx context.Context, userID, commonName string) error
	ListFavorites(ctx context.Context, userID string) ([]models.SpeciesRecord, error)

	AppendHistory(ctx context.Context, userID, query string) error
	ListHistory(ctx context.Context, userID string) ([]models.HistoryEntry, error)
	ClearHistory(ctx context.Context, userID string) error
}
