package http

import (
	"slices"

	"github.com/dkeye/Cypher/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sessionUserID   = "uid"
	sessionUsername = "name"
	ctxUser         = "user"
)

// IdentityMiddleware attaches a domain.User to every request. The id lives in
// the session cookie; ?name= renames the holder. Nothing here authenticates.
func IdentityMiddleware(moderators []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		id, _ := s.Get(sessionUserID).(string)
		name, _ := s.Get(sessionUsername).(string)

		dirty := false
		if id == "" {
			id = uuid.NewString()
			dirty = true
		}
		if q := c.Query("name"); q != "" && q != name {
			name = q
			dirty = true
		}
		if name == "" {
			name = guestName(id)
			dirty = true
		}

		user := resolveUser(id, name, moderators)
		if user.Username != name {
			name = user.Username
			dirty = true
		}

		if dirty {
			s.Set(sessionUserID, id)
			s.Set(sessionUsername, name)
			if err := s.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(ctxUser, user)
		c.Next()
	}
}

// resolveUser falls back to a guest name when name is unusable.
func resolveUser(id, name string, moderators []string) domain.User {
	user, err := domain.NewUserWithID(domain.UserID(id), name)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("user", id).Msg("bad identity, using guest name")
		user = &domain.User{ID: domain.UserID(id), Username: guestName(id)}
	}
	user.Moderator = slices.Contains(moderators, id)
	return *user
}

func guestName(id string) string {
	if len(id) > 4 {
		id = id[:4]
	}
	return "guest-" + id
}

func currentUser(c *gin.Context) domain.User {
	u, _ := c.MustGet(ctxUser).(domain.User)
	return u
}
