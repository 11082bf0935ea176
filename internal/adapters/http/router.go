package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Cypher/internal/adapters/rtc"
	"github.com/dkeye/Cypher/internal/adapters/signal"
	"github.com/dkeye/Cypher/internal/app/orch"
	"github.com/dkeye/Cypher/internal/config"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SetupRouter wires REST, the signal websocket and static files.
// results may be nil when no result store is configured.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, results core.ResultReader) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("CypherSessions", store))
	r.Use(IdentityMiddleware(cfg.Moderators))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": o.Registry.Count()})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})
	api.GET("/ws/signal", func(c *gin.Context) {
		user := currentUser(c)
		log.Info().Str("module", "adapters.http").Str("user", string(user.ID)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c, user)
	})

	api.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, currentUser(c))
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.Rooms.List()})
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		snap, err := o.Rooms.Snapshot(domain.RoomID(c.Param("id")))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	api.GET("/battles/:id", func(c *gin.Context) {
		snap, err := o.Rooms.Battle(domain.BattleID(c.Param("id")))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	api.GET("/battles/:id/result", func(c *gin.Context) {
		if results == nil {
			writeError(c, domain.ErrBattleNotFound)
			return
		}
		res, err := results.BattleResult(c.Request.Context(), domain.BattleID(c.Param("id")))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	iceCfg := rtc.WebRTCConfig(cfg.ICE)
	api.GET("/ice", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceCfg.ICEServers})
	})

	return r
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrStateConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"code": domain.Code(err), "error": err.Error()})
}
