package handlers

import (
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-desk/internal/api/dto"
	"github.com/spec-kit/query-desk/internal/auth"
	"github.com/spec-kit/query-desk/internal/domain"
	"github.com/spec-kit/query-desk/internal/repository"
	"github.com/spec-kit/query-desk/internal/service"
	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

// ClientQueriesHandler serves the client's submission form and history.
type ClientQueriesHandler struct {
	gate *service.AccessGate
}

// NewClientQueriesHandler constructs handler.
func NewClientQueriesHandler(gate *service.AccessGate) *ClientQueriesHandler {
	return &ClientQueriesHandler{gate: gate}
}

// NextID GET /client/queries/next-id.
func (h *ClientQueriesHandler) NextID(c *fiber.Ctx) error {
	sess, _ := auth.SessionFromContext(c)
	id, err := h.gate.NextQueryID(c.UserContext(), sess)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NextIDResponse{QueryID: id}})
}

// Submit POST /client/queries.
func (h *ClientQueriesHandler) Submit(c *fiber.Ctx) error {
	sess, _ := auth.SessionFromContext(c)
	input := service.SubmitInput{
		Email:       c.FormValue("email"),
		Mobile:      c.FormValue("mobile"),
		Heading:     c.FormValue("heading"),
		Description: c.FormValue("description"),
	}
	if fh, err := c.FormFile("screenshot"); err == nil && fh != nil {
		upload, err := readScreenshot(fh)
		if err != nil {
			return err
		}
		input.Screenshot = upload
	}

	query, err := h.gate.SubmitQuery(c.UserContext(), sess, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.SubmitQueryResponse{
		QueryID:            query.ID,
		Status:             string(query.Status),
		DateRaised:         query.DateRaised.Format(repository.TimestampLayout),
		ScreenshotUploaded: screenshotUploaded(query),
	}})
}

// History GET /client/queries?email=.
func (h *ClientQueriesHandler) History(c *fiber.Ctx) error {
	sess, _ := auth.SessionFromContext(c)
	queries, err := h.gate.ClientHistory(c.UserContext(), sess, c.Query("email"))
	if err != nil {
		return err
	}
	rows := make([]dto.ClientQueryRow, 0, len(queries))
	for i := range queries {
		rows = append(rows, clientRow(&queries[i]))
	}
	return c.JSON(fiber.Map{"data": rows})
}

func readScreenshot(fh *multipart.FileHeader) (*service.ScreenshotUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("unreadable screenshot upload", nil)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.NewValidationError("unreadable screenshot upload", nil)
	}
	return &service.ScreenshotUpload{FileName: fh.Filename, Content: content}, nil
}

func clientRow(q *domain.Query) dto.ClientQueryRow {
	row := dto.ClientQueryRow{
		QueryID:            q.ID,
		ClientEmail:        q.ClientEmail,
		ClientMobile:       q.ClientMobile,
		Heading:            q.Heading,
		Description:        q.Description,
		Status:             string(q.Status),
		DateRaised:         q.DateRaised.Format(repository.TimestampLayout),
		ScreenshotPath:     q.ScreenshotRef,
		ScreenshotUploaded: screenshotUploaded(q),
	}
	if q.DateClosed != nil {
		closed := q.DateClosed.Format(repository.TimestampLayout)
		row.DateClosed = &closed
	}
	return row
}

func screenshotUploaded(q *domain.Query) string {
	if q.HasScreenshot() {
		return dto.ScreenshotYes
	}
	return dto.ScreenshotNo
}
