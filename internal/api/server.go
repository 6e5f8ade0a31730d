// Package api exposes the HTTP control surface. All routes return JSON
// except /qr, which serves a small HTML status page.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mylstore/wa-relay/internal/media"
	"github.com/mylstore/wa-relay/internal/relay"
	"github.com/mylstore/wa-relay/internal/wa"
)

type Server struct {
	relay  *relay.Relay
	router *gin.Engine
	log    *logrus.Entry
}

func NewServer(rl *relay.Relay) *Server {
	s := &Server{
		relay: rl,
		log:   logrus.WithField("component", "api"),
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/send-otp", s.sendOTP)
	router.GET("/send-image", s.sendImage)
	router.GET("/send-myl", s.sendPoster)
	router.GET("/health", s.health)
	router.GET("/qr", s.qrPage)

	s.router = router
	return s
}

// Router returns the underlying engine for serving and for tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) sendOTP(c *gin.Context) {
	phone := c.Query("phonenumber")
	message := c.Query("message")
	if phone == "" || message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing phonenumber or message"})
		return
	}

	if err := s.relay.SendText(c.Request.Context(), phone, message); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) sendImage(c *gin.Context) {
	imageURL := c.Query("imageUrl")
	mobile := c.Query("mobile")
	if imageURL == "" || mobile == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing imageUrl or mobile"})
		return
	}

	req := media.Request{URL: imageURL, Caption: c.Query("caption")}
	img, err := s.relay.SendImage(c.Request.Context(), mobile, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"imageSize": img.Size(),
		"method":    img.Method,
	})
}

func (s *Server) sendPoster(c *gin.Context) {
	name := c.Query("name")
	mobile := c.Query("mobile")
	if name == "" || mobile == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name or mobile"})
		return
	}

	quantity, _ := strconv.Atoi(c.Query("quantity"))
	amount, _ := strconv.Atoi(c.Query("amount"))
	poster := media.PosterRequest{Name: name, Quantity: quantity, Amount: amount}
	poster.Normalize()

	req := media.Request{Poster: &poster, Caption: c.Query("caption")}
	img, err := s.relay.SendImage(c.Request.Context(), mobile, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"quantity":  poster.Quantity,
		"amount":    poster.Amount,
		"imageSize": img.Size(),
	})
}

// fail maps the error taxonomy onto HTTP status categories: caller errors to
// 400, transient unavailability to 503, downstream failures to 500.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, wa.ErrInvalidTarget):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number", "details": err.Error()})
	case errors.Is(err, wa.ErrSessionNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WhatsApp client not ready"})
	default:
		s.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message", "details": err.Error()})
	}
}
