package http

import (
	"importer_server/core/domain"
	"importer_server/core/port/in"
	"importer_server/infra/middleware"
	"importer_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderDAVToken carries a token for the contact store when it differs from
// the API bearer token.
const HeaderDAVToken = "X-DAV-Token"

type ImportHandler struct {
	imports in.ImportService
}

func NewImportHandler(imports in.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

func (h *ImportHandler) Register(router fiber.Router) {
	imp := router.Group("/import")
	imp.Get("/jobs/:id", h.GetJob)
	imp.Post("/:provider", h.StartImport)
}

type startImportResponse struct {
	JobID         uuid.UUID       `json:"job_id"`
	Provider      domain.Provider `json:"provider"`
	AddressBookID string          `json:"address_book_id"`
	State         domain.JobState `json:"state"`
}

// StartImport accepts an import request and returns 202 with the job id.
func (h *ImportHandler) StartImport(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return apperr.Unauthorized("")
	}

	provider, ok := domain.ParseProvider(c.Params("provider"))
	if !ok {
		return apperr.InvalidInput("provider", "unsupported provider")
	}

	var req in.ImportRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.BadRequest("invalid request body")
		}
	}
	req.UserID = userID
	req.Provider = provider
	req.StoreToken = storeToken(c)

	summary, err := h.imports.RequestImport(c.UserContext(), &req)
	if err != nil {
		return err
	}

	return SuccessResponse(c, fiber.StatusAccepted, startImportResponse{
		JobID:         summary.JobID,
		Provider:      summary.Provider,
		AddressBookID: summary.AddressBookID,
		State:         summary.State,
	})
}

// GetJob returns the job summary of one of the caller's jobs.
func (h *ImportHandler) GetJob(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return apperr.Unauthorized("")
	}

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.InvalidInput("id", "must be a UUID")
	}

	summary, err := h.imports.GetJob(c.UserContext(), userID, jobID)
	if err != nil {
		return err
	}
	return SuccessResponse(c, fiber.StatusOK, summary)
}

func storeToken(c *fiber.Ctx) string {
	if t := c.Get(HeaderDAVToken); t != "" {
		return t
	}
	t, _ := c.Locals(middleware.LocalAccessToken).(string)
	return t
}
