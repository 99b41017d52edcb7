package middleware

import (
	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/session"
	"backend/pkg/response"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only — DO NOT use in production
	}
	return []byte(secret)
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" || os.Getenv("RENDER") != "" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	// access_token: 24h, path=/, domain="", secure, HttpOnly
	c.SetCookie("access_token", accessToken, 3600*24, "/", "", secure, true)
	// refresh_token: 7 days, path=/, domain="", secure, HttpOnly
	c.SetCookie("refresh_token", refreshToken, 3600*24*7, "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" || os.Getenv("RENDER") != "" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

// --- Capability-based middleware ---

// capCacheEntry stores resolved capabilities for a role with TTL. Standing
// grants are per-user and looked up separately on cache misses.
type capCacheEntry struct {
	caps      permission.Capabilities
	expiresAt time.Time
}

var (
	capCache    sync.Map // roleName → capCacheEntry
	capCacheTTL = 5 * time.Minute
)

// authDB and idleGuard are set once at startup via InitAuthMiddleware.
var (
	authDB    *gorm.DB
	idleGuard *session.Guard
)

// InitAuthMiddleware wires the DB (for override/grant lookups) and the idle
// guard (every authenticated request counts as activity).
func InitAuthMiddleware(db *gorm.DB, guard *session.Guard) {
	authDB = db
	idleGuard = guard
}

// parseToken extracts and validates the JWT from cookie or Bearer header
// and loads its claims into the gin context. Returns false after writing
// the error response.
func parseToken(c *gin.Context) bool {
	tokenString, cookieErr := c.Cookie("access_token")
	if cookieErr != nil || tokenString == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return false
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
			return false
		}
		tokenString = parts[1]
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return GetJWTSecret(), nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
		return false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
		return false
	}

	userRole, ok := claims["role"].(string)
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
		return false
	}

	c.Set("userID", claims["sub"])
	c.Set("userRole", userRole)
	if name, ok := claims["name"].(string); ok {
		c.Set("userFullName", name)
	}

	// Any authenticated request resets the idle-timeout clock.
	if idleGuard != nil {
		if sub, ok := claims["sub"].(string); ok {
			if id, parseErr := uuid.Parse(sub); parseErr == nil {
				idleGuard.Touch(id)
			}
		}
	}

	return true
}

// RequireAuth validates the JWT without any capability requirement.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !parseToken(c) {
			return
		}
		c.Next()
	}
}

// RequireCapability validates the JWT and checks that the user's effective
// capability map grants every listed code. Resolution happens server-side
// through the same resolver the workflow engine uses — any client-side
// button hiding is advisory only.
func RequireCapability(requiredCaps ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !parseToken(c) {
			return
		}

		userRole := c.GetString("userRole")
		caps, err := capabilitiesForRole(c, userRole)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}

		for _, required := range requiredCaps {
			if caps.Has(required) {
				continue
			}
			// Role map says no; per-user standing grants may still allow.
			if hasStandingGrant(c, required) {
				continue
			}
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing capability '"+required+"'"))
			return
		}

		c.Next()
	}
}

// capabilitiesForRole returns the cached or freshly resolved capability map
// for a role name.
func capabilitiesForRole(c *gin.Context, roleName string) (permission.Capabilities, error) {
	if entry, ok := capCache.Load(roleName); ok {
		cached := entry.(capCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.caps, nil
		}
	}

	if authDB == nil {
		return nil, fmt.Errorf("auth middleware not initialized")
	}

	var rows []model.PermissionOverride
	if err := authDB.WithContext(c.Request.Context()).Find(&rows).Error; err != nil {
		return nil, err
	}
	overrides := make(permission.Overrides)
	for _, row := range rows {
		if overrides[row.RoleName] == nil {
			overrides[row.RoleName] = make(map[string]bool)
		}
		overrides[row.RoleName][row.Capability] = row.Allowed
	}

	caps := permission.Resolve(roleName, overrides, nil)
	capCache.Store(roleName, capCacheEntry{caps: caps, expiresAt: time.Now().Add(capCacheTTL)})
	return caps, nil
}

// hasStandingGrant loads the acting user row and checks the per-user
// escape-hatch grants. Only consulted after the role map denied.
func hasStandingGrant(c *gin.Context, capability string) bool {
	if authDB == nil {
		return false
	}
	sub, ok := c.Get("userID")
	if !ok {
		return false
	}
	idStr, ok := sub.(string)
	if !ok {
		return false
	}

	var user model.User
	if err := authDB.WithContext(c.Request.Context()).First(&user, "id = ?", idStr).Error; err != nil {
		return false
	}
	for _, code := range user.GrantList() {
		if code == capability {
			return true
		}
	}
	return false
}

// ClearCapabilityCache removes cached capabilities for a specific role (or
// all roles if empty). Called after role or override mutations.
func ClearCapabilityCache(roleName string) {
	if roleName == "" {
		capCache.Range(func(key, _ interface{}) bool {
			capCache.Delete(key)
			return true
		})
	} else {
		capCache.Delete(roleName)
	}
}
