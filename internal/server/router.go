package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "github.com/franckalain/mealscan/internal/errors"
	"github.com/franckalain/mealscan/internal/metrics"
)

func (s *Server) setupRouter() *gin.Engine {
	if !s.cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api")
	{
		api.GET("/profile", s.handleProfile)
		api.GET("/diary", s.handleDiary)
		api.GET("/diary/totals", s.handleTotals)
		api.DELETE("/diary/:id", s.handleDeleteEntry)
		api.GET("/progress", s.handleProgress)
		api.GET("/metrics/usage", s.handleUsage)
	}

	// Serve static files
	r.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.cfg.Server.StaticDir))))
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"system": metrics.GetSysHealth(s.cfg.Database.Path),
	})
}

func (s *Server) handleProfile(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Profile)
}

func (s *Server) handleDiary(c *gin.Context) {
	c.JSON(http.StatusOK, s.diaryPayload())
}

func (s *Server) handleTotals(c *gin.Context) {
	c.JSON(http.StatusOK, s.diary.Totals())
}

func (s *Server) handleProgress(c *gin.Context) {
	c.JSON(http.StatusOK, s.progressPayload())
}

func (s *Server) handleDeleteEntry(c *gin.Context) {
	id := c.Param("id")
	if err := s.diary.Delete(c.Request.Context(), id); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.broadcast("diary", s.diaryPayload())
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUsage(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		s.abortWithError(c, apperrors.New(apperrors.ErrInvalid, "days must be a positive integer"))
		return
	}
	if s.usage == nil {
		c.JSON(http.StatusOK, []metrics.DailyUsage{})
		return
	}

	usage, err := s.usage.GetDailyUsage(days)
	if err != nil {
		s.abortWithError(c, apperrors.Wrap(apperrors.ErrDatabase, "failed to read usage", err))
		return
	}
	if usage == nil {
		usage = []metrics.DailyUsage{}
	}
	c.JSON(http.StatusOK, usage)
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrInvalid:
		status = http.StatusBadRequest
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": newErrorPayload(err)})
}
