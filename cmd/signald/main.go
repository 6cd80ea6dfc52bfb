package main

import (
	"context"
	"embed"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/pedalcast/pedalcast/config"
	"github.com/pedalcast/pedalcast/pkg/cast"
	"github.com/pedalcast/pedalcast/pkg/log"
	"github.com/pedalcast/pedalcast/pkg/pairing"
	"github.com/pedalcast/pedalcast/pkg/signal"
)

//go:embed pages
var pages embed.FS

func main() {
	cfg := config.Load()
	log.Setup(cfg.Environment != "production")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}
	cancel()
	defer rdb.Close()
	log.Info("redis connection established")

	store := cast.NewRedisStore(rdb)
	relay := signal.NewServer()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(originFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ICE configuration for devices, so both sides agree on servers.
	router.GET("/api/ice", func(c *gin.Context) {
		stun := cfg.STUNServers
		if len(stun) == 0 {
			stun = pairing.DefaultSTUNServers
		}
		c.JSON(http.StatusOK, gin.H{"stunServers": stun})
	})

	// WebSocket signaling, one topic per pairing code.
	router.GET("/ws/pair/:code", func(c *gin.Context) {
		relay.HandleWS(c.Writer, c.Request, c.Param("code"))
	})

	// Cast snapshot record, one per code.
	api := router.Group("/api")
	{
		api.GET("/cast/:code", getSnapshot(store))
		api.PUT("/cast/:code", putSnapshot(store))
		api.DELETE("/cast/:code", clearSnapshot(store))
	}

	// Device entry pages: /pair?code=XXXX for the phone, /cast?code=XXXX
	// for viewers, /tv as the TV-remote-friendly alias.
	router.GET("/pair", servePage("pages/pair.html"))
	router.GET("/cast", servePage("pages/cast.html"))
	router.GET("/tv", servePage("pages/cast.html"))

	log.Infof("signald listening on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func servePage(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		content, err := pages.ReadFile(name)
		if err != nil {
			c.String(http.StatusInternalServerError, "page not found")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", content)
	}
}

// originFilter rejects browser requests from origins outside the allow
// list. Requests without an Origin header (devices, curl) pass through.
func originFilter(allowed []string) gin.HandlerFunc {
	allow := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		allow[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if !allow[origin] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Next()
	}
}
