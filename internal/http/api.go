package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"hyperlearn/internal/app"
	"hyperlearn/internal/domain"
	"hyperlearn/internal/editor"
	"hyperlearn/internal/sandbox"
	"hyperlearn/internal/service"
)

const accountKey = "account"

type Config struct {
	// RunRate and RunBurst limit run creation per account; a zero rate
	// disables the limit.
	RunRate  float64
	RunBurst int
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *logrus.Logger
}

// Handler wires HTTP routes to the application facade.
type Handler struct {
	app     *app.App
	cfg     Config
	limiter *runLimiter
}

func NewHandler(a *app.App, cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Handler{
		app:     a,
		cfg:     cfg,
		limiter: newRunLimiter(cfg.RunRate, cfg.RunBurst),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	if h.cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.cfg.Metrics))
	}

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)
	}

	authed := api.Group("")
	authed.Use(h.authMiddleware())
	{
		authed.POST("/auth/logout", h.logout)
		authed.GET("/auth/me", h.me)
		authed.PATCH("/auth/me", h.updateMe)

		authed.GET("/tutorials", h.listTutorials)
		authed.GET("/tutorials/:id", h.getTutorial)
		authed.POST("/tutorials/:id/select", h.selectTutorial)

		authed.GET("/progress/:id", h.getProgress)
		authed.PATCH("/progress/:id", h.updateProgress)

		authed.GET("/code", h.getCode)
		authed.PUT("/code", h.putCode)
		authed.POST("/code/reset", h.resetCode)

		authed.POST("/runs", h.limiter.middleware(), h.createRun)
		authed.GET("/runs/:handle/log", h.runLog)
		authed.GET("/runs/:handle/stream", h.streamRun)
		authed.GET("/runs/:handle/preview", h.runPreview)
		authed.DELETE("/runs/:handle", h.disposeRun)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authMiddleware accepts "Authorization: Bearer <token>" or, for
// EventSource clients that cannot set headers, a token query parameter.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		account, err := h.app.Authorize(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.Set(accountKey, account)
		c.Next()
	}
}

func currentAccount(c *gin.Context) *domain.Account {
	account, _ := c.MustGet(accountKey).(*domain.Account)
	return account
}

// errBadLogin is the one answer to a failed login, whichever part was wrong.
var errBadLogin = errors.New("invalid identity or password")

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrNotSignedIn),
		errors.Is(err, service.ErrUnknownIdentity),
		errors.Is(err, service.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrDuplicateIdentity),
		errors.Is(err, editor.ErrNoTutorial):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidCatalog):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTutorialNotFound),
		errors.Is(err, sandbox.ErrUnknownHandle):
		return http.StatusNotFound
	case errors.Is(err, sandbox.ErrRunDisposed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.cfg.Logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type credentialsRequest struct {
	Identity    string `json:"identity" binding:"required"`
	Secret      string `json:"secret" binding:"required"`
	DisplayName string `json:"displayName"`
}

type sessionResponse struct {
	Account *domain.Account `json:"account"`
	Token   string          `json:"token"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, session, err := h.app.SignUp(c.Request.Context(), req.Identity, req.Secret, req.DisplayName)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{Account: account, Token: session.Token})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, session, err := h.app.SignIn(c.Request.Context(), req.Identity, req.Secret)
	switch {
	case errors.Is(err, service.ErrUnknownIdentity), errors.Is(err, service.ErrInvalidCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"error": errBadLogin.Error()})
		return
	case err != nil:
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Account: account, Token: session.Token})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.app.SignOut(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentAccount(c))
}

type updateMeRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

func (h *Handler) updateMe(c *gin.Context) {
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account, err := h.app.UpdateDisplayName(c.Request.Context(), req.DisplayName)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) listTutorials(c *gin.Context) {
	tutorials, err := h.app.Tutorials(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tutorials)
}

func (h *Handler) getTutorial(c *gin.Context) {
	tutorial, err := h.app.Tutorial(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tutorial)
}

func (h *Handler) selectTutorial(c *gin.Context) {
	tutorial, handle, err := h.app.SelectTutorial(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{"tutorial": tutorial}
	if handle != "" {
		resp["run"] = handle
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getProgress(c *gin.Context) {
	progress, err := h.app.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *Handler) updateProgress(c *gin.Context) {
	var partial domain.Progress
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	progress, err := h.app.UpdateProgress(c.Request.Context(), c.Param("id"), partial)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

type codeRequest struct {
	Text string `json:"text"`
}

func (h *Handler) getCode(c *gin.Context) {
	text, err := h.app.Code(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, codeRequest{Text: text})
}

func (h *Handler) putCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.app.EditCode(c.Request.Context(), req.Text); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) resetCode(c *gin.Context) {
	handle, err := h.app.ResetCode(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{}
	if handle != "" {
		resp["run"] = handle
	}
	c.JSON(http.StatusOK, resp)
}
