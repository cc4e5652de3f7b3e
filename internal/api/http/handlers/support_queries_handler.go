package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-desk/internal/api/dto"
	"github.com/spec-kit/query-desk/internal/auth"
	"github.com/spec-kit/query-desk/internal/domain"
	"github.com/spec-kit/query-desk/internal/repository"
	"github.com/spec-kit/query-desk/internal/service"
)

// SupportQueriesHandler serves the support table and close action.
type SupportQueriesHandler struct {
	gate *service.AccessGate
}

// NewSupportQueriesHandler constructs handler.
func NewSupportQueriesHandler(gate *service.AccessGate) *SupportQueriesHandler {
	return &SupportQueriesHandler{gate: gate}
}

// List GET /support/queries?status=All|Open|Closed.
func (h *SupportQueriesHandler) List(c *fiber.Ctx) error {
	sess, _ := auth.SessionFromContext(c)
	status, err := domain.ParseStatusFilter(c.Query("status"))
	if err != nil {
		return err
	}
	queries, err := h.gate.ListQueries(c.UserContext(), sess, status)
	if err != nil {
		return err
	}
	rows := make([]dto.SupportQueryRow, 0, len(queries))
	for i := range queries {
		q := &queries[i]
		rows = append(rows, dto.SupportQueryRow{
			QueryID:            q.ID,
			ClientEmail:        q.ClientEmail,
			ClientMobile:       q.ClientMobile,
			Heading:            q.Heading,
			Description:        q.Description,
			Status:             string(q.Status),
			DateRaised:         q.DateRaised.Format(repository.TimestampLayout),
			ScreenshotUploaded: screenshotUploaded(q),
		})
	}
	return c.JSON(fiber.Map{"data": rows})
}

// OpenIDs GET /support/queries/open.
func (h *SupportQueriesHandler) OpenIDs(c *fiber.Ctx) error {
	sess, _ := auth.SessionFromContext(c)
	ids, err := h.gate.OpenQueryIDs(c.UserContext(), sess)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ids})
}

// Close POST /support/queries/:id/close.
func (h *SupportQueriesHandler) Close(c *fiber.Ctx) error {
	sess, _ := auth.SessionFromContext(c)
	query, err := h.gate.CloseQuery(c.UserContext(), sess, c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.CloseQueryResponse{QueryID: query.ID, Status: string(query.Status)}
	if query.DateClosed != nil {
		resp.DateClosed = query.DateClosed.Format(repository.TimestampLayout)
	}
	return c.JSON(fiber.Map{"data": resp})
}
