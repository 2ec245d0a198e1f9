package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/logging"
	"github.com/Zachkp/portfolio/internal/site"
	"github.com/Zachkp/portfolio/internal/store"
	"github.com/Zachkp/portfolio/internal/telemetry"
)

const (
	sessionCookie = "portfolio_session"
	// sessionMaxAge matches the admin login lifetime. Form sessions refresh
	// the cookie on every request and the registry TTL decides when an idle
	// form goes away.
	sessionMaxAge = 24 * time.Hour
)

type server struct {
	cfg      *config.Config
	log      *zap.Logger
	content  *site.Content
	store    *store.Store
	metrics  *telemetry.Metrics
	sessions *contact.Registry
	hasher   privacyHasher
	now      func() time.Time

	// transport delivers submitted messages; nil means the simulated one.
	transport contact.Transport
}

func newServer(cfg *config.Config, log *zap.Logger, content *site.Content, st *store.Store, metrics *telemetry.Metrics) *server {
	s := &server{
		cfg:     cfg,
		log:     log,
		content: content,
		store:   st,
		metrics: metrics,
		hasher:  newPrivacyHasher(),
		now:     time.Now,
	}
	s.sessions = contact.NewRegistry(s.newController,
		contact.IdleTTL(cfg.SessionTTL),
		contact.RegistryLogger(log),
	)
	return s
}

// router builds the Gin engine. extra runs before any route is registered so
// it can add middleware that has to see every request.
func (s *server) router(extra ...func(*gin.Engine)) *gin.Engine {
	r := gin.New()
	r.Use(logging.Recovery(s.log), logging.Middleware(s.log))
	r.Use(otelgin.Middleware(s.cfg.ServiceName))
	for _, fn := range extra {
		fn(r)
	}
	r.Use(sessions.Sessions(sessionCookie, s.cookieStore()))
	r.Use(s.visitorTracking())

	r.LoadHTMLGlob("templates/*")
	r.Static("/images", "./images")
	r.Static("/static", "./static")

	r.GET("/", s.home)
	r.GET("/projects/:id", s.projectModal)
	r.GET("/healthz", s.health)

	r.GET("/contact-form", s.contactForm)
	r.POST("/contact/field", s.contactField)
	r.POST("/contact", s.contactSubmit)
	r.GET("/contact/state", s.contactState)
	r.GET("/contact/toasts", s.contactToasts)
	r.DELETE("/contact", s.contactUnmount)

	s.setupAdminRoutes(r)
	return r
}

func (s *server) cookieStore() sessions.Store {
	st := cookie.NewStore([]byte(s.cfg.SessionSecret))
	st.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(sessionMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.GinMode == gin.ReleaseMode,
	})
	return st
}

// Home page route
func (s *server) home(c *gin.Context) {
	view, err := site.ParseSkillsView(c.DefaultQuery("skills", s.cfg.SkillsView))
	if err != nil {
		view = site.SkillsCSS
	}
	sess, ok := s.formSession(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"content":    s.content,
		"featured":   s.content.Featured(),
		"skillsView": string(view),
		"contact":    formView(sess.Controller.Snapshot(), nil),
		"year":       s.now().Year(),
	})
}

func (s *server) projectModal(c *gin.Context) {
	var uri struct {
		ID int `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Project not found"})
		return
	}
	project, ok := s.content.Project(uri.ID)
	if !ok {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Project not found"})
		return
	}
	c.HTML(http.StatusOK, "project-modal.html", gin.H{"project": project})
}

func (s *server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.log.Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
}

// maintain sweeps idle form sessions and trims old visitor rows until ctx
// is done.
func (s *server) maintain(ctx context.Context, sweepEvery, cleanupEvery time.Duration) {
	s.cleanupVisitors(ctx)

	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()
	cleanup := time.NewTicker(cleanupEvery)
	defer cleanup.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			s.sessions.Sweep()
			s.metrics.SetSessions(s.sessions.Len())
		case <-cleanup.C:
			s.cleanupVisitors(ctx)
		}
	}
}
