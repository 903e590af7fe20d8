package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"threat-cache/internal/common/logging"
	"threat-cache/internal/common/pagination"
)

// GetStats returns the cache statistics
// @Summary Get cache statistics
// @Description Returns request, hit and miss counters plus local tier usage
// @Tags cache
// @Produce json
// @Success 200 {object} cache.Stats "Cache statistics"
// @Router /api/cache/stats [get]
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	h.sendJSONResponse(w, http.StatusOK, h.manager.Stats())
}

// GetKeys lists cached keys
// @Summary List cache keys
// @Description Returns the keys of the local and shared tiers containing the pattern
// @Tags cache
// @Produce json
// @Param pattern query string false "Substring to match, empty matches every key"
// @Param page query int false "Page number (default 1)"
// @Param per_page query int false "Keys per page (default 100, max 1000)"
// @Success 200 {object} KeysResponse "Matching keys"
// @Router /api/cache/keys [get]
func (h *Handlers) GetKeys(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	page := pagination.Paginate(h.manager.GetKeys(r.Context(), pattern), pagination.ParseParams(r))

	h.sendJSONResponse(w, http.StatusOK, KeysResponse{
		Pattern:    pattern,
		Keys:       page.Results,
		Count:      page.Total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: page.TotalPages,
	})
}

// InvalidateKeys removes every key matching a pattern
// @Summary Invalidate cache keys by pattern
// @Description Removes every key containing the pattern from the local and shared tiers
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Param pattern query string true "Substring to match"
// @Success 200 {object} InvalidateResponse "Number of keys removed"
// @Failure 400 {object} ErrorResponse "Missing pattern"
// @Failure 401 {object} ErrorResponse "Authentication required"
// @Router /api/cache/keys [delete]
func (h *Handlers) InvalidateKeys(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		h.sendError(w, http.StatusBadRequest, "pattern query parameter is required")
		return
	}

	removed := h.manager.Invalidate(r.Context(), pattern)
	h.logger.WithContext(r.Context()).Info("Cache keys invalidated via API",
		logging.Field{Key: "pattern", Value: pattern},
		logging.Field{Key: "removed", Value: removed},
	)

	h.sendJSONResponse(w, http.StatusOK, InvalidateResponse{Pattern: pattern, Removed: removed})
}

// DeleteKey removes a single key
// @Summary Delete a cache key
// @Description Removes the key from the local and shared tiers
// @Tags cache
// @Security BearerAuth
// @Param key path string true "Cache key"
// @Success 204 "Key deleted"
// @Failure 401 {object} ErrorResponse "Authentication required"
// @Router /api/cache/keys/{key} [delete]
func (h *Handlers) DeleteKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		h.sendError(w, http.StatusBadRequest, "key is required")
		return
	}

	ctx := logging.WithCacheKey(r.Context(), key)
	h.manager.Delete(ctx, key)
	h.logger.WithContext(ctx).Info("Cache key deleted via API")
	w.WriteHeader(http.StatusNoContent)
}

// RunCleanup sweeps expired local entries
// @Summary Run a cleanup sweep
// @Description Removes expired entries from the local tier immediately
// @Tags cache
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CleanupResponse "Number of entries removed"
// @Failure 401 {object} ErrorResponse "Authentication required"
// @Router /api/cache/cleanup [post]
func (h *Handlers) RunCleanup(w http.ResponseWriter, r *http.Request) {
	removed := h.manager.Cleanup()
	h.sendJSONResponse(w, http.StatusOK, CleanupResponse{Removed: removed})
}
