package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// @Summary Ticket details
// @Tags tickets
// @Produce json
// @Param id path int true "Enriched ticket ID"
// @Success 200 {object} models.EnrichedTicket
// @Failure 404 {object} map[string]any
// @Router /api/v1/tickets/{id} [get]
func (h *Handler) TicketDetails(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	t, err := h.Store.GetEnrichedTicket(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Ticket")
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary Assign ticket
// @Description Routes the ticket to an office and manager. Repeated calls return the first assignment.
// @Tags tickets
// @Produce json
// @Param id path int true "Enriched ticket ID"
// @Success 200 {object} models.EnrichedTicket
// @Failure 404 {object} map[string]any
// @Router /api/v1/tickets/{id}/assign [post]
func (h *Handler) AssignTicket(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	t, err := h.Assigner.Assign(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Ticket")
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary Routing explanation
// @Description Dry run of office resolution and manager filtering. Nothing is written.
// @Tags debug
// @Produce json
// @Param ticket_id query int true "Enriched ticket ID"
// @Success 200 {object} service.Explanation
// @Router /api/v1/debug/routing [get]
func (h *Handler) DebugRouting(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("ticket_id"))
	if raw == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "ticket_id is required", nil)
		return
	}
	id, ok := parseID(c, raw)
	if !ok {
		return
	}
	exp, err := h.Assigner.Explain(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Ticket")
		return
	}
	c.JSON(http.StatusOK, exp)
}

// @Summary List managers
// @Tags directory
// @Produce json
// @Param office query string false "Office code"
// @Success 200 {object} map[string]any
// @Router /api/v1/managers [get]
func (h *Handler) ManagersList(c *gin.Context) {
	office := strings.TrimSpace(c.Query("office"))
	items, err := h.Store.ListManagers(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Managers")
		return
	}
	if office != "" {
		filtered := items[:0]
		for _, m := range items {
			if strings.EqualFold(m.OfficeCode, office) {
				filtered = append(filtered, m)
			}
		}
		items = filtered
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary List offices
// @Tags directory
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/v1/offices [get]
func (h *Handler) OfficesList(c *gin.Context) {
	items, err := h.Store.ListOffices(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Offices")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
