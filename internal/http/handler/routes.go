package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"

	"instashare/internal/http/middleware"
	"instashare/internal/service"
)

// presignExpiry is how long original-download links stay valid.
const presignExpiry = 15 * time.Minute

// Handler bundles the services the HTTP layer dispatches into.
type Handler struct {
	db    *sql.DB
	auth  service.AuthService
	files service.FileService
	jobs  service.JobService
}

// New constructs the HTTP handler set.
func New(db *sql.DB, auth service.AuthService, files service.FileService, jobs service.JobService) *Handler {
	return &Handler{db: db, auth: auth, files: files, jobs: jobs}
}

// RegisterRoutes attaches all routes to the provided Fiber app.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", h.HealthCheck)
	app.Get("/healthz", h.Liveness)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)

	authed := api.Group("", middleware.RequireAuth(h.auth))
	authed.Post("/files", h.UploadFile)
	authed.Get("/files", h.ListFiles)
	authed.Post("/files/process", h.ProcessPending)
	authed.Get("/files/:id", h.GetFile)
	authed.Patch("/files/:id", h.RenameFile)
	authed.Delete("/files/:id", h.DeleteFile)
	authed.Get("/files/:id/original", h.OriginalURL)
	authed.Get("/files/:id/download", h.DownloadArtifact)
	authed.Get("/stats", h.Stats)

	authed.Post("/jobs/run", h.RunJob)
	authed.Get("/jobs/:id", h.JobStatus)
}

// isValidationError reports whether err wraps a struct validation failure.
func isValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

// HealthCheck reports readiness by pinging the database.
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
}

// Liveness is a plain liveness probe.
func (h *Handler) Liveness(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

// Register creates a new account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	u, err := h.auth.Register(c.UserContext(), in)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			return writeError(c, fiber.StatusConflict, "USERNAME_TAKEN", "username already taken")
		}
		if isValidationError(err) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_INPUT", "invalid registration input")
		}
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.Status(fiber.StatusCreated).JSON(u)
}

// Login verifies credentials and returns a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	token, u, err := h.auth.Login(c.UserContext(), in)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return writeError(c, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
		}
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(fiber.Map{"token": token, "user": u})
}

// UploadFile accepts a multipart upload (field name: file). An optional
// display_name form field overrides the stored display name.
func (h *Handler) UploadFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
	}

	f, err := fh.Open()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
	}
	defer f.Close()

	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	displayName := c.FormValue("display_name")

	file, err := h.files.Upload(c.UserContext(), middleware.UserID(c), f, fh.Filename, displayName, ct, fh.Size)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.Status(fiber.StatusCreated).JSON(file)
}

// ListFiles returns the caller's files with limit & offset.
func (h *Handler) ListFiles(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
	}
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
	}

	res, err := h.files.List(c.UserContext(), middleware.UserID(c), limit, offset)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(res)
}

// GetFile returns a single file by ID.
func (h *Handler) GetFile(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	}
	f, err := h.files.Get(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
		}
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(f)
}

// RenameFile updates a file's display name.
func (h *Handler) RenameFile(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := c.BodyParser(&body); err != nil || body.DisplayName == "" {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "display_name is required")
	}

	if err := h.files.Rename(c.UserContext(), middleware.UserID(c), id, body.DisplayName); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
		}
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteFile removes a file and its stored object.
func (h *Handler) DeleteFile(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	}
	if err := h.files.Delete(c.UserContext(), middleware.UserID(c), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
		}
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// OriginalURL returns a presigned link to the original upload.
func (h *Handler) OriginalURL(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	}
	url, err := h.files.OriginalURL(c.UserContext(), middleware.UserID(c), id, presignExpiry)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
		}
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(fiber.Map{"url": url})
}

// DownloadArtifact streams the compressed artifact of a completed file.
func (h *Handler) DownloadArtifact(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	}
	path, name, err := h.files.Artifact(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
		}
		if errors.Is(err, service.ErrFileNotReady) {
			return writeError(c, fiber.StatusConflict, "NOT_READY", "file has not been compressed yet")
		}
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.Download(path, name)
}

// Stats returns aggregate numbers for the caller's files.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.files.Stats(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(stats)
}

// RunJob triggers a collective archive build over the caller's pending files.
// It always answers 200 with {success, message}; a failed build is a normal
// outcome of the trigger, reported through the message field.
func (h *Handler) RunJob(c *fiber.Ctx) error {
	job, err := h.jobs.Run(c.UserContext(), middleware.UserID(c))
	if err != nil {
		msg := "archive job failed"
		if job != nil && job.Message != "" {
			msg = job.Message
		}
		res := fiber.Map{"success": false, "message": msg}
		if job != nil {
			res["job_id"] = job.ID
		}
		return c.JSON(res)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": job.Message,
		"job_id":  job.ID,
	})
}

// ProcessPending compresses each of the caller's pending files individually.
func (h *Handler) ProcessPending(c *fiber.Ctx) error {
	res, err := h.jobs.ProcessPending(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(res)
}

// JobStatus answers a status poll for an archive job.
func (h *Handler) JobStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	}
	job, err := h.jobs.Get(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "job not found")
		}
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(job)
}
