package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"storefront/internal/logger"
	"storefront/internal/repository"
	"storefront/internal/service"
)

type Server struct {
	engine     *gin.Engine
	storefront *service.Storefront
}

// NewServer собирает gin-движок витрины. gatherer отдаётся на /metrics; nil означает реестр по умолчанию.
func NewServer(storefront *service.Storefront, log zerolog.Logger, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := gin.New()
	r.Use(logger.Middleware(log), gin.Recovery())
	r.SetHTMLTemplate(parseTemplates())
	s := &Server{engine: r, storefront: storefront}
	s.registerRoutes(gatherer)
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.engine.GET("/", s.page)
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.engine.POST("/reload", s.reload)

	cart := s.engine.Group("/cart/items")
	{
		cart.POST(":id", s.addItem)
		cart.POST(":id/remove", s.removeItem)
	}

	discount := s.engine.Group("/discount")
	{
		discount.POST("/apply", s.applyDiscount)
		discount.POST("/remove", s.removeDiscount)
	}

	s.engine.POST("/checkout", s.checkout)

	admin := s.engine.Group("/admin")
	{
		admin.POST("/toggle", s.toggleAdmin)
		admin.POST("/stats", s.adminStats)
		admin.POST("/discount/generate", s.generateDiscount)
	}

	v1 := s.engine.Group("/api/v1")
	v1.GET("/view", s.view)
}

// @Summary Storefront page
// @Tags view
// @Produce html
// @Success 200 {string} string "HTML page"
// @Router / [get]
func (s *Server) page(c *gin.Context) {
	c.HTML(http.StatusOK, pageTemplate, s.storefront.View())
}

// @Summary Current view model
// @Tags view
// @Produce json
// @Success 200 {object} service.View
// @Router /api/v1/view [get]
func (s *Server) view(c *gin.Context) {
	c.JSON(http.StatusOK, s.storefront.View())
}

// respond завершает намерение: браузер уходит обратно на страницу, JSON-клиент получает снимок
func (s *Server) respond(c *gin.Context, err error) {
	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) != gin.MIMEJSON {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	status := http.StatusOK
	if err != nil {
		status = mapErrorToStatus(err)
	}
	c.JSON(status, s.storefront.View())
}

// @Summary Reload all data
// @Tags view
// @Produce json
// @Success 200 {object} service.View
// @Success 303 "redirect for HTML clients"
// @Failure 502 {object} service.View
// @Router /reload [post]
func (s *Server) reload(c *gin.Context) {
	s.respond(c, s.storefront.Reload(ctxOf(c)))
}

// @Summary Add one unit of an item to the cart
// @Tags cart
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} service.View
// @Success 303 "redirect for HTML clients"
// @Failure 400 {object} service.View
// @Failure 404 {object} service.View
// @Failure 502 {object} service.View
// @Router /cart/items/{id} [post]
func (s *Server) addItem(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.respond(c, fmt.Errorf("%w: item id: %v", service.ErrInvalidInput, err))
		return
	}
	s.respond(c, s.storefront.AddItem(ctxOf(c), id))
}

// @Summary Remove an item from the cart
// @Tags cart
// @Produce json
// @Param id path int true "Item ID"
// @Success 200 {object} service.View
// @Success 303 "redirect for HTML clients"
// @Failure 400 {object} service.View
// @Failure 404 {object} service.View
// @Failure 502 {object} service.View
// @Router /cart/items/{id}/remove [post]
func (s *Server) removeItem(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.respond(c, fmt.Errorf("%w: item id: %v", service.ErrInvalidInput, err))
		return
	}
	s.respond(c, s.storefront.RemoveItem(ctxOf(c), id))
}

type applyDiscountReq struct {
	Code string `form:"code" json:"code" binding:"required"`
}

// @Summary Apply an available discount code
// @Tags discount
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param input body applyDiscountReq true "Code"
// @Success 200 {object} service.View
// @Success 303 "redirect for HTML clients"
// @Failure 400 {object} service.View
// @Router /discount/apply [post]
func (s *Server) applyDiscount(c *gin.Context) {
	var req applyDiscountReq
	if err := c.ShouldBind(&req); err != nil {
		s.respond(c, fmt.Errorf("%w: %v", service.ErrInvalidInput, err))
		return
	}
	s.respond(c, s.storefront.ApplyDiscount(req.Code))
}

// @Summary Remove the applied discount code
// @Tags discount
// @Produce json
// @Success 200 {object} service.View
// @Success 303 "redirect for HTML clients"
// @Router /discount/remove [post]
func (s *Server) removeDiscount(c *gin.Context) {
	s.storefront.RemoveDiscount()
	s.respond(c, nil)
}

// @Summary Checkout the cart
// @Tags cart
// @Produce json
// @Success 200 {object} service.View
// @Success 303 "redirect for HTML clients"
// @Failure 400 {object} service.View
// @Failure 502 {object} service.View
// @Router /checkout [post]
func (s *Server) checkout(c *gin.Context) {
	_, err := s.storefront.Checkout(ctxOf(c))
	s.respond(c, err)
}

// @Summary Show or hide the admin panel
// @Tags admin
// @Produce json
// @Success 200 {object} service.View
// @Success 303 "redirect for HTML clients"
// @Router /admin/toggle [post]
func (s *Server) toggleAdmin(c *gin.Context) {
	s.storefront.ToggleAdmin()
	s.respond(c, nil)
}

// @Summary Load admin statistics
// @Tags admin
// @Produce json
// @Success 200 {object} service.View
// @Success 303 "redirect for HTML clients"
// @Failure 502 {object} service.View
// @Router /admin/stats [post]
func (s *Server) adminStats(c *gin.Context) {
	s.respond(c, s.storefront.LoadAdminStats(ctxOf(c)))
}

// @Summary Generate a discount code
// @Tags admin
// @Produce json
// @Success 200 {object} service.View
// @Success 303 "redirect for HTML clients"
// @Failure 400 {object} service.View
// @Failure 502 {object} service.View
// @Router /admin/discount/generate [post]
func (s *Server) generateDiscount(c *gin.Context) {
	_, err := s.storefront.GenerateDiscount(ctxOf(c))
	s.respond(c, err)
}

// ctxOf returns the request context carrying the request-scoped logger.
func ctxOf(c *gin.Context) context.Context {
	return c.Request.Context()
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func mapErrorToStatus(err error) int {
	var apiErr *repository.APIError
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrDiscountUnavailable):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return apiErr.StatusCode
	default:
		return http.StatusBadGateway
	}
}
