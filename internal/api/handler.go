package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/bobby-s-dev/species-archive/internal/models"
	"github.com/bobby-s-dev/species-archive/internal/services"
	"github.com/bobby-s-dev/species-archive/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const notFoundMessage = "The archives are silent on this subject."

// StatusReporter exposes background job state for the metrics endpoint.
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

type Handler struct {
	aggregator    *services.Aggregator
	store         store.FavoritesStore
	scheduler     StatusReporter
	logger        *zap.Logger
	streamTimeout time.Duration
}

func NewHandler(aggregator *services.Aggregator, favorites store.FavoritesStore, logger *zap.Logger) *Handler {
	return &Handler{
		aggregator:    aggregator,
		store:         favorites,
		logger:        logger,
		streamTimeout: 90 * time.Second,
	}
}

// WithScheduler attaches the featured refresher so its state is reported.
func (h *Handler) WithScheduler(s StatusReporter) *Handler {
	h.scheduler = s
	return h
}

// GetSpecies handles GET /api/v1/species
func (h *Handler) GetSpecies(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "q parameter is required",
		})
	}

	h.logger.Info("Aggregating species", zap.String("query", query))

	// Searches are remembered whether or not they succeed.
	if userID := c.Query("user"); userID != "" {
		h.recordHistory(c.UserContext(), userID, query)
	}

	record, err := h.aggregator.AggregateSpecies(c.UserContext(), query, nil)
	if err != nil {
		return h.aggregationError(c, query, err)
	}

	return c.JSON(record)
}

// StreamSpecies handles GET /api/v1/species/stream. Progress lines are sent
// as server-sent events, followed by one result or error event.
func (h *Handler) StreamSpecies(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "q parameter is required",
		})
	}
	userID := c.Query("user")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		// The fiber context is not valid once the handler has returned.
		ctx, cancel := context.WithTimeout(context.Background(), h.streamTimeout)
		defer cancel()

		if userID != "" {
			h.recordHistory(ctx, userID, query)
		}

		record, err := h.aggregator.AggregateSpecies(ctx, query, func(p services.Progress) {
			writeEvent(w, "progress", p)
		})
		if err != nil {
			writeEvent(w, "error", errorBody(err))
			return
		}
		writeEvent(w, "result", record)
	})

	return nil
}

// GetSuggestion handles GET /api/v1/suggest
func (h *Handler) GetSuggestion(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "q parameter is required",
		})
	}

	suggestion, ok := h.aggregator.SuggestCorrection(c.UserContext(), query)
	if !ok {
		return c.JSON(fiber.Map{"suggestion": nil})
	}
	return c.JSON(fiber.Map{"suggestion": suggestion})
}

// GetAutocomplete handles GET /api/v1/autocomplete
func (h *Handler) GetAutocomplete(c *fiber.Ctx) error {
	titles := h.aggregator.Autocomplete(c.UserContext(), c.Query("q"))
	if titles == nil {
		titles = []string{}
	}
	return c.JSON(fiber.Map{"suggestions": titles})
}

// GetRelated handles GET /api/v1/related
func (h *Handler) GetRelated(c *fiber.Ctx) error {
	stubs, err := h.aggregator.ListRelated(c.UserContext(), c.Query("name"), c.Query("family"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name parameter is required",
		})
	}
	return c.JSON(fiber.Map{"items": stubs})
}

// GetByLetter handles GET /api/v1/browse/:letter
func (h *Handler) GetByLetter(c *fiber.Ctx) error {
	stubs, err := h.aggregator.ListByLetter(c.UserContext(), c.Params("letter"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"items": stubs})
}

// GetFeatured handles GET /api/v1/featured
func (h *Handler) GetFeatured(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"items": h.aggregator.ListFeatured(c.UserContext())})
}

// ListFavorites handles GET /api/v1/users/:userID/favorites
func (h *Handler) ListFavorites(c *fiber.Ctx) error {
	if h.store == nil {
		return storeUnavailable(c)
	}

	records, err := h.store.ListFavorites(c.UserContext(), c.Params("userID"))
	if err != nil {
		return fmt.Errorf("listing favorites: %w", err)
	}
	return c.JSON(fiber.Map{"items": records})
}

// SaveFavorite handles POST /api/v1/users/:userID/favorites
func (h *Handler) SaveFavorite(c *fiber.Ctx) error {
	if h.store == nil {
		return storeUnavailable(c)
	}

	var record models.SpeciesRecord
	if err := c.BodyParser(&record); err != nil || !record.HasIdentity() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "body must be a species record with a name",
		})
	}

	if err := h.store.SaveFavorite(c.UserContext(), c.Params("userID"), &record); err != nil {
		return fmt.Errorf("saving favorite: %w", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"saved": record.CommonName})
}

// RemoveFavorite handles DELETE /api/v1/users/:userID/favorites/:name
func (h *Handler) RemoveFavorite(c *fiber.Ctx) error {
	if h.store == nil {
		return storeUnavailable(c)
	}

	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid name"})
	}

	err = h.store.RemoveFavorite(c.UserContext(), c.Params("userID"), name)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "favorite not found"})
	}
	if err != nil {
		return fmt.Errorf("removing favorite: %w", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListHistory handles GET /api/v1/users/:userID/history
func (h *Handler) ListHistory(c *fiber.Ctx) error {
	if h.store == nil {
		return storeUnavailable(c)
	}

	entries, err := h.store.ListHistory(c.UserContext(), c.Params("userID"))
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}
	return c.JSON(fiber.Map{"items": entries})
}

// ClearHistory handles DELETE /api/v1/users/:userID/history
func (h *Handler) ClearHistory(c *fiber.Ctx) error {
	if h.store == nil {
		return storeUnavailable(c)
	}

	if err := h.store.ClearHistory(c.UserContext(), c.Params("userID")); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":           "healthy",
		"timestamp":        time.Now(),
		"last_aggregation": h.aggregator.GetLastAggregationTime(),
		"uptime":           time.Since(startTime).String(),
		"store":            h.store != nil,
	})
}

// GetMetrics handles GET /api/v1/metrics
func (h *Handler) GetMetrics(c *fiber.Ctx) error {
	body := fiber.Map{
		"metrics":   h.aggregator.GetStats(),
		"timestamp": time.Now(),
	}
	if h.scheduler != nil {
		body["scheduler"] = h.scheduler.GetStatus()
	}
	return c.JSON(body)
}

func (h *Handler) aggregationError(c *fiber.Ctx, query string, err error) error {
	if errors.Is(err, services.ErrEmptyQuery) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "q parameter is required",
		})
	}
	if errors.Is(err, services.ErrNotFound) {
		h.logger.Info("Species not found", zap.String("query", query), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(errorBody(err))
	}
	return fmt.Errorf("aggregating %q: %w", query, err)
}

func (h *Handler) recordHistory(ctx context.Context, userID, query string) {
	if h.store == nil {
		return
	}
	if err := h.store.AppendHistory(ctx, userID, query); err != nil {
		h.logger.Warn("Failed to record search history",
			zap.String("user", userID),
			zap.Error(err))
	}
}

// errorBody is the calm user-facing shape of a failed lookup. Raw causes are
// only logged.
func errorBody(err error) fiber.Map {
	var nf *services.NotFoundError
	if errors.As(err, &nf) {
		body := fiber.Map{"error": notFoundMessage, "suggestion": nil}
		if nf.Suggestion != "" {
			body["suggestion"] = nf.Suggestion
		}
		return body
	}
	if errors.Is(err, services.ErrEmptyQuery) {
		return fiber.Map{"error": "q parameter is required"}
	}
	return fiber.Map{"error": "Something went wrong while reading the archives."}
}

func writeEvent(w *bufio.Writer, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	w.Flush()
}

func storeUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": "favorites store is not configured",
	})
}

var startTime = time.Now()
