package rest

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/present/rest/middleware"
	"github.com/cityflow/cityflow/internal/present/rest/presenter"
	"github.com/cityflow/cityflow/internal/usecase"
)

const maxUploadBytes = 10 << 20

type ComplaintService interface {
	Create(ctx context.Context, actor domain.Actor, input usecase.CreateComplaintInput) (domain.Complaint, error)
	UpdateFields(ctx context.Context, actor domain.Actor, id int64, input usecase.UpdateComplaintInput) (domain.Complaint, error)
	ChangeStatus(ctx context.Context, actor domain.Actor, id int64, status string) (domain.Complaint, error)
	Reject(ctx context.Context, actor domain.Actor, id int64, reason string) (domain.Complaint, error)
	Get(ctx context.Context, actor domain.Actor, id int64) (domain.Complaint, error)
	ListMine(ctx context.Context, actor domain.Actor) ([]domain.Complaint, error)
	Feed(ctx context.Context, actor domain.Actor, query usecase.FeedQuery) ([]domain.Complaint, error)
	AddPhoto(ctx context.Context, actor domain.Actor, id int64, filename string, data []byte) (domain.ComplaintPhoto, error)
	Delete(ctx context.Context, actor domain.Actor, id int64) error
}

type AssignmentService interface {
	AssignEmployee(ctx context.Context, actor domain.Actor, complaintID, employeeID int64) (domain.Assignment, error)
	Start(ctx context.Context, actor domain.Actor, assignmentID int64) (domain.Assignment, error)
	Complete(ctx context.Context, actor domain.Actor, assignmentID int64, urls []string) (domain.Assignment, error)
	ChangeStatus(ctx context.Context, actor domain.Actor, assignmentID int64, status string, solutionPhotoURL *string) (domain.Assignment, error)
	UploadSolutionPhotos(ctx context.Context, actor domain.Actor, assignmentID int64, files []usecase.UploadFile) (domain.Assignment, error)
	ListForEmployee(ctx context.Context, actor domain.Actor, statuses []string) ([]domain.Assignment, error)
	Get(ctx context.Context, actor domain.Actor, assignmentID int64) (domain.Assignment, error)
}

type LedgerService interface {
	ToggleSupport(ctx context.Context, actor domain.Actor, complaintID int64) (domain.SupportResult, error)
	AddRating(ctx context.Context, actor domain.Actor, complaintID int64, score int, comment *string) (domain.Rating, error)
	ListSupports(ctx context.Context, actor domain.Actor, complaintID int64) ([]domain.Support, error)
	ListRatings(ctx context.Context, complaintID int64) ([]domain.Rating, error)
}

type CategoryService interface {
	Create(ctx context.Context, actor domain.Actor, input usecase.CategoryInput) (domain.Category, error)
	Update(ctx context.Context, actor domain.Actor, id int64, input usecase.CategoryInput) (domain.Category, error)
	Delete(ctx context.Context, actor domain.Actor, id int64) error
	Get(ctx context.Context, id int64) (domain.Category, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Category, error)
}

type RealtimeService interface {
	Realtime(ctx context.Context, input <-chan []int64, output chan<- domain.Event)
}

type Handler struct {
	complaint  ComplaintService
	assignment AssignmentService
	ledger     LedgerService
	category   CategoryService
	signal     RealtimeService
}

func NewHandler(
	complaint ComplaintService,
	assignment AssignmentService,
	ledger LedgerService,
	category CategoryService,
	signal RealtimeService,
) *Handler {
	return &Handler{
		complaint:  complaint,
		assignment: assignment,
		ledger:     ledger,
		category:   category,
		signal:     signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.handleHealth)
	e.GET("/realtime", h.handleRealtime)

	api := e.Group("/api/v1", middleware.RequireAuth)

	api.POST("/complaints", h.handleCreateComplaint)
	api.GET("/complaints/mine", h.handleListMine)
	api.GET("/complaints/feed", h.handleFeed)
	api.GET("/complaints/:id", h.handleGetComplaint)
	api.PATCH("/complaints/:id", h.handleUpdateComplaint)
	api.DELETE("/complaints/:id", h.handleDeleteComplaint)
	api.PUT("/complaints/:id/status", h.handleComplaintStatus)
	api.POST("/complaints/:id/reject", h.handleRejectComplaint)
	api.POST("/complaints/:id/photos", h.handleAddPhoto)
	api.POST("/complaints/:id/support", h.handleToggleSupport)
	api.GET("/complaints/:id/supports", h.handleListSupports)
	api.POST("/complaints/:id/ratings", h.handleAddRating)
	api.GET("/complaints/:id/ratings", h.handleListRatings)
	api.POST("/complaints/:id/assignments", h.handleAssign)

	api.GET("/assignments", h.handleListAssignments)
	api.GET("/assignments/:id", h.handleGetAssignment)
	api.POST("/assignments/:id/start", h.handleStartAssignment)
	api.POST("/assignments/:id/complete", h.handleCompleteAssignment)
	api.PATCH("/assignments/:id/status", h.handleAssignmentStatus)
	api.POST("/assignments/:id/solution-photos", h.handleSolutionPhotos)

	api.GET("/categories", h.handleListCategories)
	api.GET("/categories/:id", h.handleGetCategory)
	api.POST("/categories", h.handleCreateCategory)
	api.PUT("/categories/:id", h.handleUpdateCategory)
	api.DELETE("/categories/:id", h.handleDeleteCategory)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func actor(c echo.Context) domain.Actor {
	a, _ := middleware.ActorFrom(c.Request().Context())
	return a
}

func idParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// complaints

func (h *Handler) handleCreateComplaint(c echo.Context) error {
	ctx := c.Request().Context()

	var input usecase.CreateComplaintInput
	if err := c.Bind(&input); err != nil {
		return presenter.BadRequest(c, err)
	}

	complaint, err := h.complaint.Create(ctx, actor(c), input)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, complaint)
}

func (h *Handler) handleListMine(c echo.Context) error {
	complaints, err := h.complaint.ListMine(c.Request().Context(), actor(c))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, complaints)
}

func (h *Handler) handleFeed(c echo.Context) error {
	ctx := c.Request().Context()

	sort, err := domain.ParseFeedSort(c.QueryParam("sort"))
	if err != nil {
		return presenter.Error(c, err)
	}
	query := usecase.FeedQuery{Sort: sort}

	if s := c.QueryParam("lat"); s != "" {
		lat, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid lat parameter")
		}
		query.Latitude = &lat
	}
	if s := c.QueryParam("lon"); s != "" {
		lon, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid lon parameter")
		}
		query.Longitude = &lon
	}
	if s := c.QueryParam("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid limit parameter")
		}
		query.Limit = limit
	}

	complaints, err := h.complaint.Feed(ctx, actor(c), query)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, complaints)
}

func (h *Handler) handleGetComplaint(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	complaint, err := h.complaint.Get(c.Request().Context(), actor(c), id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, complaint)
}

func (h *Handler) handleUpdateComplaint(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	var input usecase.UpdateComplaintInput
	if err := c.Bind(&input); err != nil {
		return presenter.BadRequest(c, err)
	}
	complaint, err := h.complaint.UpdateFields(c.Request().Context(), actor(c), id, input)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, complaint)
}

type statusRequest struct {
	Status           string  `json:"status"`
	SolutionPhotoURL *string `json:"solutionPhotoUrl"`
}

func (h *Handler) handleComplaintStatus(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	complaint, err := h.complaint.ChangeStatus(c.Request().Context(), actor(c), id, req.Status)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, complaint)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRejectComplaint(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	complaint, err := h.complaint.Reject(c.Request().Context(), actor(c), id, req.Reason)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, complaint)
}

func (h *Handler) handleAddPhoto(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	header, err := c.FormFile("file")
	if err != nil {
		return presenter.BadRequestMessage(c, "file is required")
	}
	file, err := readUpload(header)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	photo, err := h.complaint.AddPhoto(c.Request().Context(), actor(c), id, file.Filename, file.Data)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, photo)
}

func (h *Handler) handleDeleteComplaint(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	if err := h.complaint.Delete(c.Request().Context(), actor(c), id); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.NoContent(c)
}

// supports and ratings

func (h *Handler) handleToggleSupport(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	result, err := h.ledger.ToggleSupport(c.Request().Context(), actor(c), id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleListSupports(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	supports, err := h.ledger.ListSupports(c.Request().Context(), actor(c), id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, supports)
}

type ratingRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

func (h *Handler) handleAddRating(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	var req ratingRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	rating, err := h.ledger.AddRating(c.Request().Context(), actor(c), id, req.Rating, req.Comment)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, rating)
}

func (h *Handler) handleListRatings(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	ratings, err := h.ledger.ListRatings(c.Request().Context(), id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, ratings)
}

// assignments

type assignRequest struct {
	EmployeeID int64 `json:"employeeId"`
}

func (h *Handler) handleAssign(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	assignment, err := h.assignment.AssignEmployee(c.Request().Context(), actor(c), id, req.EmployeeID)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, assignment)
}

func (h *Handler) handleListAssignments(c echo.Context) error {
	statuses := c.QueryParams()["status"]
	assignments, err := h.assignment.ListForEmployee(c.Request().Context(), actor(c), statuses)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, assignments)
}

func (h *Handler) handleGetAssignment(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	assignment, err := h.assignment.Get(c.Request().Context(), actor(c), id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, assignment)
}

func (h *Handler) handleStartAssignment(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	assignment, err := h.assignment.Start(c.Request().Context(), actor(c), id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, assignment)
}

type completeRequest struct {
	SolutionPhotoURLs []string `json:"solutionPhotoUrls"`
}

func (h *Handler) handleCompleteAssignment(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	assignment, err := h.assignment.Complete(c.Request().Context(), actor(c), id, req.SolutionPhotoURLs)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, assignment)
}

func (h *Handler) handleAssignmentStatus(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	assignment, err := h.assignment.ChangeStatus(c.Request().Context(), actor(c), id, req.Status, req.SolutionPhotoURL)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, assignment)
}

func (h *Handler) handleSolutionPhotos(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return presenter.BadRequestMessage(c, "multipart form is required")
	}
	files := make([]usecase.UploadFile, 0, len(form.File["files"]))
	for _, header := range form.File["files"] {
		file, err := readUpload(header)
		if err != nil {
			return presenter.BadRequest(c, err)
		}
		files = append(files, file)
	}
	assignment, err := h.assignment.UploadSolutionPhotos(c.Request().Context(), actor(c), id, files)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, assignment)
}

func readUpload(header *multipart.FileHeader) (usecase.UploadFile, error) {
	if header.Size > maxUploadBytes {
		return usecase.UploadFile{}, domain.Validationf("%s is too large", header.Filename)
	}
	f, err := header.Open()
	if err != nil {
		return usecase.UploadFile{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return usecase.UploadFile{}, err
	}
	return usecase.UploadFile{Filename: header.Filename, Data: data}, nil
}

// categories

func (h *Handler) handleListCategories(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"
	categories, err := h.category.List(c.Request().Context(), activeOnly)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, categories)
}

func (h *Handler) handleGetCategory(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	category, err := h.category.Get(c.Request().Context(), id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, category)
}

func (h *Handler) handleCreateCategory(c echo.Context) error {
	var input usecase.CategoryInput
	if err := c.Bind(&input); err != nil {
		return presenter.BadRequest(c, err)
	}
	category, err := h.category.Create(c.Request().Context(), actor(c), input)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, category)
}

func (h *Handler) handleUpdateCategory(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	var input usecase.CategoryInput
	if err := c.Bind(&input); err != nil {
		return presenter.BadRequest(c, err)
	}
	category, err := h.category.Update(c.Request().Context(), actor(c), id, input)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, category)
}

func (h *Handler) handleDeleteCategory(c echo.Context) error {
	id, ok := idParam(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}
	if err := h.category.Delete(c.Request().Context(), actor(c), id); err != nil {
		return presenter.Error(c, err)
	}
	return presenter.NoContent(c)
}

// realtime

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type       string  `json:"type"`
	Complaints []int64 `json:"complaints"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []int64)
	output := make(chan domain.Event)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Complaints:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, "Socket subscribe",
					slog.Any("complaints", req.Complaints),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-output:
			if !ok {
				return nil
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
