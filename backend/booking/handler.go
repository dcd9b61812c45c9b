package booking

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
)

const DefaultRoom = "restaurant-booking"

type WeatherLookup interface {
	Lookup(ctx context.Context, location, date string) bookingapi.Weather
}

type TokenMinter interface {
	Generate(room, identity string) (string, error)
}

type Handler struct {
	service *Service
	weather WeatherLookup
	tokens  TokenMinter
}

// NewHandler wires the HTTP surface. tokens may be nil when LiveKit is not
// configured.
func NewHandler(service *Service, weather WeatherLookup, tokens TokenMinter) *Handler {
	return &Handler{service: service, weather: weather, tokens: tokens}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Voice Agent Backend is Running")
	})

	api := r.Group("/api")
	api.GET("/bookings", h.listBookings)
	api.POST("/bookings", h.createBooking)
	api.GET("/bookings/:id", h.getBooking)
	api.DELETE("/bookings/:id", h.cancelBooking)
	api.GET("/weather", h.getWeather)
	api.GET("/token", h.getToken)
}

func (h *Handler) listBookings(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) getBooking(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) createBooking(c *gin.Context) {
	var draft bookingapi.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, bookingapi.ErrorResponse{Message: err.Error()})
		return
	}
	b, err := h.service.Create(c.Request.Context(), draft)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) cancelBooking(c *gin.Context) {
	if _, err := h.service.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingapi.ErrorResponse{Message: "Booking cancelled"})
}

func (h *Handler) getWeather(c *gin.Context) {
	location := strings.TrimSpace(c.Query("location"))
	if location == "" {
		c.JSON(http.StatusBadRequest, bookingapi.ErrorResponse{Message: "Location is required"})
		return
	}
	c.JSON(http.StatusOK, h.weather.Lookup(c.Request.Context(), location, c.Query("date")))
}

func (h *Handler) getToken(c *gin.Context) {
	room := strings.TrimSpace(c.Query("room"))
	if room == "" {
		room = DefaultRoom
	}
	identity := strings.TrimSpace(c.Query("username"))
	if identity == "" {
		identity = "user-" + uuid.NewString()[:8]
	}

	if h.tokens == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfigured: missing LiveKit keys"})
		return
	}
	token, err := h.tokens.Generate(room, identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "roomName": room, "participantName": identity})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSlotTaken):
		c.JSON(http.StatusConflict, bookingapi.ErrorResponse{Message: bookingapi.MessageSlotTaken})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, bookingapi.ErrorResponse{Message: bookingapi.MessageNotFound})
	case errors.Is(err, ErrInvalid):
		c.JSON(http.StatusBadRequest, bookingapi.ErrorResponse{Message: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, bookingapi.ErrorResponse{Message: err.Error()})
	}
}
