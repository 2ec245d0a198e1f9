// admin.go - privacy-conscious admin system
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionAdminKey = "admin"

// privacyHasher hashes identifiers with a per-process salt so raw IPs and
// session ids never reach the database or logs.
type privacyHasher struct {
	salt string
}

func newPrivacyHasher() privacyHasher {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate hashing salt: " + err.Error())
	}
	return privacyHasher{salt: hex.EncodeToString(b)}
}

// Hash is consistent per input for the life of the process.
func (h privacyHasher) Hash(s string) string {
	sum := sha256.Sum256([]byte(s + h.salt))
	return hex.EncodeToString(sum[:])[:16]
}

// untrackedPrefixes are never recorded as visits
var untrackedPrefixes = []string{"/static/", "/images/", "/admin/", "/favicon", "/privacy", "/contact", "/metrics", "/healthz"}

// Privacy-conscious visitor tracking middleware
func (s *server) visitorTracking() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet || c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}
		for _, p := range untrackedPrefixes {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}

		hashed := s.hasher.Hash(c.ClientIP())
		ua := c.GetHeader("User-Agent")
		at := s.now()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.store.RecordVisit(ctx, hashed, ua, path, at); err != nil {
				s.log.Error("Error recording visitor", zap.Error(err))
			}
		}()
		c.Next()
	}
}

// cleanupVisitors drops visits older than the retention window
func (s *server) cleanupVisitors(ctx context.Context) {
	n, err := s.store.Cleanup(ctx, s.now().Add(-s.cfg.VisitorRetention))
	if err != nil {
		s.log.Error("Error cleaning up old visitor data", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("Privacy cleanup: removed old visitor records", zap.Int64("count", n))
	}
}

// Middleware to check admin authentication
func adminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, _ := sessions.Default(c).Get(sessionAdminKey).(bool); !ok {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *server) credentialsMatch(username, password string) bool {
	u := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.AdminUsername))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword))
	return u&p == 1
}

// Setup all admin routes
func (s *server) setupAdminRoutes(r *gin.Engine) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title":     "Privacy Policy",
			"retention": s.cfg.VisitorRetention.String(),
		})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{
			"title": "Admin Login",
		})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		who := s.hasher.Hash(c.ClientIP())
		if !s.credentialsMatch(c.PostForm("username"), c.PostForm("password")) {
			s.log.Warn("Failed admin login attempt", zap.String("from", who))
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		sess := sessions.Default(c)
		sess.Set(sessionAdminKey, true)
		if err := sess.Save(); err != nil {
			s.log.Error("Error saving admin session", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Could not start session"})
			return
		}
		s.log.Info("Admin login successful", zap.String("from", who))
		c.Redirect(http.StatusFound, "/admin/dashboard")
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		sess := sessions.Default(c)
		sess.Delete(sessionAdminKey)
		if err := sess.Save(); err != nil {
			s.log.Error("Error saving session", zap.Error(err))
		}
		s.log.Info("Admin logout", zap.String("from", s.hasher.Hash(c.ClientIP())))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	adminGroup := r.Group("/admin")
	adminGroup.Use(adminAuthMiddleware())

	adminGroup.GET("/dashboard", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context(), s.now())
		if err != nil {
			s.log.Error("Error loading admin stats", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"stats":    stats,
			"sessions": s.sessions.Len(),
		})
	})

	// Admin API endpoints for HTMX/AJAX
	adminGroup.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context(), s.now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	adminGroup.GET("/visitors", func(c *gin.Context) {
		visitors, err := s.store.RecentVisitors(c.Request.Context(), 200)
		if err != nil {
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load visitors",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-visitors.html", gin.H{
			"visitors": visitors,
		})
	})

	adminGroup.POST("/privacy/cleanup", func(c *gin.Context) {
		go s.cleanupVisitors(context.Background())
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup initiated"})
	})

	// Admin statistics export (for backups or analysis)
	adminGroup.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context(), s.now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		s.log.Info("Admin stats exported", zap.String("by", s.hasher.Hash(c.ClientIP())))
		c.JSON(http.StatusOK, stats)
	})
}
