package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/QODOHUB/ayami-storefront/internal/service"
	"github.com/QODOHUB/ayami-storefront/internal/store"
	"github.com/QODOHUB/ayami-storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	catalog   *service.CatalogService
	cart      *service.CartService
	checkout  *service.CheckoutService
	customers *service.CustomerService
	orders    *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog *service.CatalogService,
	cart *service.CartService,
	checkout *service.CheckoutService,
	customers *service.CustomerService,
	orders *store.Store,
) *Handler {
	return &Handler{
		catalog:   catalog,
		cart:      cart,
		checkout:  checkout,
		customers: customers,
		orders:    orders,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/menu/groups", h.listGroups)
		v1.GET("/menu/groups/:id/products", h.listProducts)

		v1.GET("/orders/:id", h.getOrder)

		customers := v1.Group("/customers/:customerID")
		{
			customers.GET("/profile", h.getProfile)
			customers.PUT("/profile", h.updateProfile)

			customers.GET("/cart", h.listCart)
			customers.POST("/cart/items", h.addCartItem)
			customers.PUT("/cart/items/:productID", h.setCartQuantity)
			customers.DELETE("/cart/items/:productID", h.removeCartItem)

			customers.GET("/orders", h.listOrders)

			checkout := customers.Group("/checkout")
			{
				checkout.POST("", h.startCheckout)
				checkout.DELETE("", h.cancelCheckout)
				checkout.POST("/service-type", h.chooseServiceType)
				checkout.POST("/pickup-org", h.choosePickupOrg)
				checkout.POST("/address", h.enterAddressField)
				checkout.POST("/address/skip", h.skipAddressField)
				checkout.GET("/time-slots", h.listTimeSlots)
				checkout.POST("/time-slot", h.chooseTimeSlot)
				checkout.POST("/bonus", h.decideBonus)
				checkout.POST("/payment-method", h.choosePaymentMethod)
				checkout.POST("/payment/confirm", h.confirmPayment)
			}
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listGroups lists visible menu groups, root groups when parent_id is absent
func (h *Handler) listGroups(c *gin.Context) {
	groups, revision, err := h.catalog.MenuGroups(c.Request.Context(), c.Query("parent_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"revision": revision,
		"groups":   groups,
	})
}

// listProducts lists visible products of a group
func (h *Handler) listProducts(c *gin.Context) {
	products, revision, err := h.catalog.MenuProducts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"revision": revision,
		"products": products,
	})
}

// getProfile returns the loyalty profile
func (h *Handler) getProfile(c *gin.Context) {
	customer, err := h.customers.GetProfile(c.Request.Context(), c.Param("customerID"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, customer)
}

// updateProfile upserts the loyalty profile
func (h *Handler) updateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	customer, err := h.customers.UpdateProfile(c.Request.Context(), c.Param("customerID"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, customer)
}

// listCart returns the current cart lines and total
func (h *Handler) listCart(c *gin.Context) {
	items, err := h.cart.List(c.Request.Context(), c.Param("customerID"))
	if err != nil {
		respondError(c, err)
		return
	}

	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

// addCartItem adds one unit of a product to the cart
func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	line, err := h.cart.AddOrIncrement(c.Request.Context(), c.Param("customerID"), req.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, line)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// setCartQuantity sets the absolute quantity of a cart line
func (h *Handler) setCartQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	err := h.cart.SetQuantity(c.Request.Context(), c.Param("customerID"), c.Param("productID"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// removeCartItem deletes a cart line
func (h *Handler) removeCartItem(c *gin.Context) {
	err := h.cart.SetQuantity(c.Request.Context(), c.Param("customerID"), c.Param("productID"), 0)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// listOrders returns the customer's order history
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.GetOrdersByCustomer(c.Request.Context(), c.Param("customerID"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder returns one order with its lines
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrderByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}

	lines, err := h.orders.GetOrderLines(c.Request.Context(), order.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"lines": lines,
	})
}

// startCheckout opens or resumes the checkout session
func (h *Handler) startCheckout(c *gin.Context) {
	session, err := h.checkout.Start(c.Request.Context(), c.Param("customerID"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// cancelCheckout destroys the checkout session
func (h *Handler) cancelCheckout(c *gin.Context) {
	if err := h.checkout.Cancel(c.Request.Context(), c.Param("customerID")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type serviceTypeRequest struct {
	ServiceType string `json:"service_type" binding:"required"`
}

// chooseServiceType branches into delivery or pickup
func (h *Handler) chooseServiceType(c *gin.Context) {
	var req serviceTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session, err := h.checkout.ChooseServiceType(c.Request.Context(), c.Param("customerID"), req.ServiceType)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type pickupOrgRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
}

// choosePickupOrg fixes the pickup restaurant
func (h *Handler) choosePickupOrg(c *gin.Context) {
	var req pickupOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session, err := h.checkout.ChoosePickupOrg(c.Request.Context(), c.Param("customerID"), req.OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type addressFieldRequest struct {
	Value string `json:"value" binding:"required"`
}

// enterAddressField submits the address part the session is waiting on
func (h *Handler) enterAddressField(c *gin.Context) {
	var req addressFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session, err := h.checkout.EnterAddressField(c.Request.Context(), c.Param("customerID"), req.Value)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// skipAddressField skips the optional address part
func (h *Handler) skipAddressField(c *gin.Context) {
	session, err := h.checkout.SkipAddressField(c.Request.Context(), c.Param("customerID"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// listTimeSlots lists the slots currently offered
func (h *Handler) listTimeSlots(c *gin.Context) {
	slots, err := h.checkout.TimeSlots(c.Request.Context(), c.Param("customerID"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

type timeSlotRequest struct {
	Slot time.Time `json:"slot" binding:"required"`
}

// chooseTimeSlot fixes the delivery or pickup time
func (h *Handler) chooseTimeSlot(c *gin.Context) {
	var req timeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session, err := h.checkout.ChooseTimeSlot(c.Request.Context(), c.Param("customerID"), req.Slot)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

type bonusRequest struct {
	UseBonus bool `json:"use_bonus"`
}

// decideBonus records the bonus spending decision
func (h *Handler) decideBonus(c *gin.Context) {
	var req bonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.checkout.DecideBonus(c.Request.Context(), c.Param("customerID"), req.UseBonus)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type paymentMethodRequest struct {
	Method string `json:"method" binding:"required"`
}

// choosePaymentMethod finishes the flow or hands out a payment redirect
func (h *Handler) choosePaymentMethod(c *gin.Context) {
	var req paymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.checkout.ChoosePaymentMethod(c.Request.Context(), c.Param("customerID"), req.Method)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type confirmPaymentRequest struct {
	IntentID string `json:"intent_id" binding:"required"`
}

// confirmPayment verifies the gateway payment and finalizes the order
func (h *Handler) confirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.checkout.ConfirmPayment(c.Request.Context(), c.Param("customerID"), req.IntentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var notServiceable *service.NotServiceableError
	if errors.As(err, &notServiceable) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":        "Address is outside every delivery zone",
			"zone_map_url": notServiceable.ZoneMapURL,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInsufficientBonus):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoActiveSession),
		errors.Is(err, service.ErrCartLineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStaleReference),
		errors.Is(err, service.ErrStaleCart),
		errors.Is(err, service.ErrWrongState),
		errors.Is(err, service.ErrPaymentMismatch),
		errors.Is(err, service.ErrPaymentNotConfirmed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrCatalogUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
