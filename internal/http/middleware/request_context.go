package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/guildops-backend/internal/http/response"
)

const guildIDKey = "guild_id"

var (
	errMissingToken = errors.New("missing or invalid token")
	errForbidden    = errors.New("forbidden")
)

// GuildScope parses the :guildID route parameter once for every guild route.
func GuildScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		guildID, err := uuid.Parse(c.Param("guildID"))
		if err != nil || guildID == uuid.Nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_guild_id", errors.New("invalid guild id"))
			return
		}
		c.Set(guildIDKey, guildID)
		c.Next()
	}
}

// GuildID returns the guild parsed by GuildScope.
func GuildID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(guildIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
