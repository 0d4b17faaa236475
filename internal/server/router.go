package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/simfr24/plantlog/internal/forms"
	"github.com/simfr24/plantlog/internal/metrics"
	"github.com/simfr24/plantlog/internal/plants"
	"github.com/simfr24/plantlog/internal/registry"
	"github.com/simfr24/plantlog/internal/users"
	"go.uber.org/zap"
)

const userIDContextKey = "plantlog_user_id"

// The first registered account administers the instance.
const adminUserID = uint(1)

var (
	errMissingPlantService = errors.New("plant service dependency required")
	errMissingUserService  = errors.New("user service dependency required")
	errMissingSessions     = errors.New("session issuer dependency required")
	errMissingRegistry     = errors.New("registry dependency required")
	errInvalidAuth         = errors.New("authorization header missing or invalid")
)

// SessionTokens issues and validates bearer tokens for the API.
type SessionTokens interface {
	Issue(userID uint) (string, int64, error)
	Validate(token string) (uint, error)
}

// Dependencies wires the HTTP layer to the domain services.
type Dependencies struct {
	PlantService *plants.Service
	UserService  *users.Service
	Sessions     SessionTokens
	Registry     *registry.Registry
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.PlantService == nil {
		return nil, errMissingPlantService
	}
	if deps.UserService == nil {
		return nil, errMissingUserService
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.Registry == nil {
		return nil, errMissingRegistry
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		plantService: deps.PlantService,
		userService:  deps.UserService,
		sessions:     deps.Sessions,
		registry:     deps.Registry,
		metrics:      deps.Metrics,
		logger:       logger,
	}

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)

	router.GET("/event-types", handler.handleEventSpecs)
	router.GET("/u/:username", handler.handlePublicDashboard)
	router.GET("/p/:id", handler.handlePublicPlant)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/dashboard", handler.handleDashboard)
	protected.GET("/plants", handler.handleListPlants)
	protected.POST("/plants", handler.handleCreatePlant)
	protected.GET("/plants/:id", handler.handleViewPlant)
	protected.PUT("/plants/:id", handler.handleEditPlant)
	protected.DELETE("/plants/:id", handler.handleDeletePlant)
	protected.POST("/plants/:id/events", handler.handleAddEvent)
	protected.GET("/events/:id", handler.handleViewEvent)
	protected.PUT("/events/:id", handler.handleEditEvent)
	protected.DELETE("/events/:id", handler.handleDeleteEvent)
	protected.PUT("/me/language", handler.handleUpdateLanguage)
	protected.GET("/admin/users", handler.handleAdminUsers)

	return router, nil
}

type httpHandler struct {
	plantService *plants.Service
	userService  *users.Service
	sessions     SessionTokens
	registry     *registry.Registry
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Lang     string `json:"lang"`
}

type tokenPayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), request.Username, request.Password, request.Lang)
	if errors.Is(err, users.ErrUsernameTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "username_taken"})
		return
	}
	if errors.Is(err, users.ErrBadCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username_and_password_required"})
		return
	}
	if err != nil {
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username, "lang": user.Lang})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), request.Username, request.Password)
	if errors.Is(err, users.ErrBadCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad_credentials"})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	token, expiresIn, err := h.sessions.Issue(user.ID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, tokenPayload{AccessToken: token, ExpiresIn: expiresIn, TokenType: "Bearer"})
}

func (h *httpHandler) handleEventSpecs(c *gin.Context) {
	specs := h.registry.EventSpecs()
	payload := make([]gin.H, 0, len(specs))
	for _, spec := range specs {
		entry := gin.H{
			"code":        spec.Code,
			"label":       spec.Label,
			"color_class": spec.ColorClass,
			"icon_class":  spec.IconClass,
		}
		if spec.NewStateID != nil {
			if state, ok := h.registry.StateByID(*spec.NewStateID); ok {
				entry["new_state"] = state.Code
			}
		}
		payload = append(payload, entry)
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	h.renderDashboard(c, currentUserID(c))
}

func (h *httpHandler) handlePublicDashboard(c *gin.Context) {
	owner, err := h.userService.ByUsername(c.Request.Context(), c.Param("username"))
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("public dashboard owner lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard_failed"})
		return
	}
	h.renderDashboard(c, owner.ID)
}

func (h *httpHandler) renderDashboard(c *gin.Context, ownerID uint) {
	cards, err := h.plantService.LoadAllForOwner(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("dashboard load failed", zap.Error(err), zap.Uint("owner_id", ownerID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard_failed"})
		return
	}

	today := h.plantService.Today()
	plants.SortCards(cards, today)
	left, right := plants.SplitColumns(plants.GroupByState(cards))

	if h.metrics != nil {
		h.metrics.DashboardRenders.Inc()
	}
	c.JSON(http.StatusOK, gin.H{
		"today":     today.Format(plants.DateLayout),
		"plants":    cardsToDTO(cards),
		"left":      groupsToDTO(left),
		"right":     groupsToDTO(right),
		"locations": plants.UniqueLocations(cards),
	})
}

func (h *httpHandler) handleListPlants(c *gin.Context) {
	cards, err := h.plantService.LoadAllForOwner(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.logger.Error("plant list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	plants.SortCards(cards, h.plantService.Today())
	c.JSON(http.StatusOK, cardsToDTO(cards))
}

func (h *httpHandler) handleCreatePlant(c *gin.Context) {
	var form forms.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	validationErrors, event := forms.Validate(form, forms.ContextAdd)
	if len(validationErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": validationErrors})
		return
	}
	if event == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"A first event is required."}})
		return
	}

	plantID, err := h.plantService.CreatePlant(c.Request.Context(), currentUserID(c), forms.Metadata(form), *event)
	if err != nil {
		h.respondServiceError(c, err, "create_failed")
		return
	}
	if h.metrics != nil {
		h.metrics.EventMutations.WithLabelValues("insert").Inc()
	}
	c.JSON(http.StatusCreated, gin.H{"id": plantID})
}

func (h *httpHandler) handleViewPlant(c *gin.Context) {
	card, ok := h.ownedCard(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cardToDTO(*card))
}

func (h *httpHandler) handlePublicPlant(c *gin.Context) {
	plantID, ok := pathID(c)
	if !ok {
		return
	}
	card, err := h.plantService.LoadOne(c.Request.Context(), plantID)
	if errors.Is(err, plants.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.respondServiceError(c, err, "load_failed")
		return
	}
	c.JSON(http.StatusOK, cardToDTO(*card))
}

func (h *httpHandler) handleEditPlant(c *gin.Context) {
	card, ok := h.ownedCard(c)
	if !ok {
		return
	}

	var form forms.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	validationErrors, _ := forms.Validate(form, forms.ContextEdit)
	if len(validationErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": validationErrors})
		return
	}

	if err := h.plantService.UpdateMetadata(c.Request.Context(), card.ID, forms.Metadata(form)); err != nil {
		h.respondServiceError(c, err, "update_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": card.ID})
}

func (h *httpHandler) handleDeletePlant(c *gin.Context) {
	plantID, ok := pathID(c)
	if !ok {
		return
	}
	// Deliberately silent for plants the caller does not own.
	if err := h.plantService.DeletePlant(c.Request.Context(), plantID, currentUserID(c)); err != nil {
		h.respondServiceError(c, err, "delete_failed")
		return
	}
	if h.metrics != nil {
		h.metrics.PlantDeletes.Inc()
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAddEvent(c *gin.Context) {
	card, ok := h.ownedCard(c)
	if !ok {
		return
	}

	var form forms.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	validationErrors, event := forms.Validate(form, forms.ContextStage)
	if len(validationErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": validationErrors})
		return
	}
	if event == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"An event is required."}})
		return
	}

	eventID, err := h.plantService.AppendEvent(c.Request.Context(), card.ID, *event)
	if err != nil {
		h.respondServiceError(c, err, "append_failed")
		return
	}
	if h.metrics != nil {
		h.metrics.EventMutations.WithLabelValues("insert").Inc()
	}
	c.JSON(http.StatusCreated, gin.H{"id": eventID})
}

func (h *httpHandler) handleViewEvent(c *gin.Context) {
	detail, ok := h.ownedEvent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plant_id": detail.PlantID,
		"common":   detail.Common,
		"latin":    detail.Latin,
		"event":    eventToDTO(detail.View),
		"form":     forms.FromEventView(detail.View),
	})
}

func (h *httpHandler) handleEditEvent(c *gin.Context) {
	detail, ok := h.ownedEvent(c)
	if !ok {
		return
	}

	var form forms.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	validationErrors, event := forms.Validate(form, forms.ContextStage)
	if len(validationErrors) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": validationErrors})
		return
	}
	if event == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"An event is required."}})
		return
	}

	if err := h.plantService.UpdateEvent(c.Request.Context(), detail.View.ID, currentUserID(c), *event); err != nil {
		h.respondServiceError(c, err, "update_failed")
		return
	}
	if h.metrics != nil {
		h.metrics.EventMutations.WithLabelValues("update").Inc()
	}
	c.JSON(http.StatusOK, gin.H{"id": detail.View.ID})
}

func (h *httpHandler) handleDeleteEvent(c *gin.Context) {
	eventID, ok := pathID(c)
	if !ok {
		return
	}
	// Deliberately silent for events the caller does not own.
	if err := h.plantService.DeleteEvent(c.Request.Context(), eventID, currentUserID(c)); err != nil {
		h.respondServiceError(c, err, "delete_failed")
		return
	}
	if h.metrics != nil {
		h.metrics.EventMutations.WithLabelValues("delete").Inc()
	}
	c.Status(http.StatusNoContent)
}

type languagePayload struct {
	Lang string `json:"lang"`
}

func (h *httpHandler) handleUpdateLanguage(c *gin.Context) {
	var request languagePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.userService.UpdateLanguage(c.Request.Context(), currentUserID(c), request.Lang); err != nil {
		h.logger.Error("language update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lang": request.Lang})
}

func (h *httpHandler) handleAdminUsers(c *gin.Context) {
	if currentUserID(c) != adminUserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	accounts, err := h.userService.All(c.Request.Context())
	if err != nil {
		h.logger.Error("admin user list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	rows := make([]gin.H, 0, len(accounts))
	for _, account := range accounts {
		cards, err := h.plantService.LoadAllForOwner(c.Request.Context(), account.ID)
		if err != nil {
			h.logger.Error("admin plant count failed", zap.Error(err), zap.Uint("user_id", account.ID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
			return
		}
		row := gin.H{
			"id":          account.ID,
			"username":    account.Username,
			"plant_count": len(cards),
			"created_at":  account.CreatedAt,
		}
		if account.LastLogin != nil {
			row["last_login"] = account.LastLogin
		}
		rows = append(rows, row)
	}

	today := h.plantService.Today().Format(plants.DateLayout)
	counts, err := h.userService.DailyUniqueLogins(c.Request.Context(), today, today)
	if err != nil {
		h.logger.Error("login aggregation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	todayLogins := 0
	if len(counts) > 0 {
		todayLogins = counts[0].Count
	}

	c.JSON(http.StatusOK, gin.H{"users": rows, "today_logins": todayLogins})
}

// ownedCard loads the plant from the path and enforces the view/edit side of
// the ownership policy: missing plants are 404, foreign plants are 403.
func (h *httpHandler) ownedCard(c *gin.Context) (*plants.PlantCard, bool) {
	plantID, ok := pathID(c)
	if !ok {
		return nil, false
	}
	card, err := h.plantService.LoadOne(c.Request.Context(), plantID)
	if errors.Is(err, plants.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return nil, false
	}
	if err != nil {
		h.respondServiceError(c, err, "load_failed")
		return nil, false
	}
	if card.OwnerID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	return card, true
}

func (h *httpHandler) ownedEvent(c *gin.Context) (*plants.EventDetail, bool) {
	eventID, ok := pathID(c)
	if !ok {
		return nil, false
	}
	detail, err := h.plantService.GetEvent(c.Request.Context(), eventID)
	if errors.Is(err, plants.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return nil, false
	}
	if err != nil {
		h.respondServiceError(c, err, "load_failed")
		return nil, false
	}
	if detail.OwnerID != currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	return detail, true
}

func (h *httpHandler) respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, plants.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, registry.ErrUnknownEventType):
		// Config drift, not user input.
		h.logger.Error("unknown event type", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_event_type"})
	default:
		h.logger.Error("plant service failure", zap.Error(err))
		payload := gin.H{"error": fallback}
		var serviceErr *plants.ServiceError
		if errors.As(err, &serviceErr) {
			payload["code"] = serviceErr.Code()
		}
		c.JSON(http.StatusInternalServerError, payload)
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuth.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuth.Error()})
		return
	}
	userID, err := h.sessions.Validate(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

func currentUserID(c *gin.Context) uint {
	value, ok := c.Get(userIDContextKey)
	if !ok {
		return 0
	}
	userID, ok := value.(uint)
	if !ok {
		return 0
	}
	return userID
}

func pathID(c *gin.Context) (uint, bool) {
	parsed, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || parsed == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return uint(parsed), true
}
