package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zhenevahq/zheneva/internal/listing"
	"github.com/zhenevahq/zheneva/internal/store"
)

// ModerationService is the pipeline slice the HTTP bridge drives. It shares
// the atomic claim discipline with the chat surface; a lost race surfaces as
// store.ErrNotFound.
type ModerationService interface {
	Approve(ctx context.Context, id string) error
	Reject(ctx context.Context, id, reason string) error
}

// AdminStore serves the read-only queue views.
type AdminStore interface {
	Stats(ctx context.Context) (store.Stats, error)
	PendingSubmissions(ctx context.Context) ([]listing.Submission, error)
	OfferListings(ctx context.Context) ([]listing.Listing, error)
	PhotoKnown(ctx context.Context, fileID string) (bool, error)
}

// PhotoFetcher downloads photo bytes for the image proxy.
type PhotoFetcher interface {
	DownloadPhoto(ctx context.Context, fileID string) ([]byte, error)
}

// AdminHandler exposes the moderation queue and operations to the admin
// panel.
type AdminHandler struct {
	logger     *slog.Logger
	store      AdminStore
	moderation ModerationService
	photos     PhotoFetcher
}

func NewAdminHandler(log *slog.Logger, st AdminStore, moderation ModerationService, photos PhotoFetcher) *AdminHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AdminHandler{
		logger:     log.With(slog.String("handler", "admin")),
		store:      st,
		moderation: moderation,
		photos:     photos,
	}
}

func (h *AdminHandler) Register(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/stats", h.Stats)
	api.GET("/submissions", h.Submissions)
	api.GET("/listings", h.Listings)
	api.GET("/image/:file_id", h.Image)
	api.POST("/approve", h.Approve)
	api.POST("/reject", h.Reject)
}

type moderatePayload struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context())
	if err != nil {
		h.logger.Error("fetch stats", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch stats")
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) Submissions(c echo.Context) error {
	subs, err := h.store.PendingSubmissions(c.Request().Context())
	if err != nil {
		h.logger.Error("list submissions", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list submissions")
	}
	if subs == nil {
		subs = []listing.Submission{}
	}
	return c.JSON(http.StatusOK, subs)
}

func (h *AdminHandler) Listings(c echo.Context) error {
	listings, err := h.store.OfferListings(c.Request().Context())
	if err != nil {
		h.logger.Error("list listings", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list listings")
	}
	if listings == nil {
		listings = []listing.Listing{}
	}
	return c.JSON(http.StatusOK, listings)
}

// Image proxies stored photo bytes. Arbitrary file references are refused:
// only photos bound to a queued submission or a published listing may leave
// through this endpoint.
func (h *AdminHandler) Image(c echo.Context) error {
	fileID := strings.TrimSpace(c.Param("file_id"))
	if fileID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file id is required")
	}
	ctx := c.Request().Context()
	known, err := h.store.PhotoKnown(ctx, fileID)
	if err != nil {
		h.logger.Error("check photo reference", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve image")
	}
	if !known {
		return echo.NewHTTPError(http.StatusNotFound, "unknown image reference")
	}
	content, err := h.photos.DownloadPhoto(ctx, fileID)
	if err != nil {
		h.logger.Error("download photo", slog.String("file_id", fileID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to fetch image")
	}
	return c.Blob(http.StatusOK, "image/jpeg", content)
}

func (h *AdminHandler) Approve(c echo.Context) error {
	var payload moderatePayload
	if err := c.Bind(&payload); err != nil || strings.TrimSpace(payload.ID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "submission id is required")
	}
	if err := h.moderation.Approve(c.Request().Context(), payload.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "submission not found or already processed")
		}
		h.logger.Error("approve", slog.String("submission_id", payload.ID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "approve failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AdminHandler) Reject(c echo.Context) error {
	var payload moderatePayload
	if err := c.Bind(&payload); err != nil || strings.TrimSpace(payload.ID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "submission id is required")
	}
	if err := h.moderation.Reject(c.Request().Context(), payload.ID, payload.Reason); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "submission not found or already processed")
		}
		h.logger.Error("reject", slog.String("submission_id", payload.ID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "reject failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
