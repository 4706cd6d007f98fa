package main

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"insight-board/api"
	"insight-board/domain"
	"insight-board/insight"
	"insight-board/workflow"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	insightBase := os.Getenv("INSIGHT_API_BASE")
	if insightBase == "" {
		log.Fatal("missing insight service config")
	}
	insightTimeout := 30 * time.Second
	if v := os.Getenv("INSIGHT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid INSIGHT_TIMEOUT: %v", err)
		}
		insightTimeout = d
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)

	updatesChannel := os.Getenv("BOARD_UPDATES_CHANNEL")
	if updatesChannel == "" {
		updatesChannel = "board-updates"
	}

	var auth *api.Auth
	if strings.ToLower(os.Getenv("LOCAL_AUTH_MODE")) == "hs256" {
		secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET")
		if secret == "" {
			log.Fatal("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
		}
		auth = api.NewLocalAuth([]byte(secret))
	} else {
		jwksURL := os.Getenv("AUTH_JWKS_URL")
		audience := os.Getenv("AUTH_AUDIENCE")
		issuer := os.Getenv("AUTH_ISSUER")
		if jwksURL == "" || audience == "" || issuer == "" {
			log.Fatal("missing auth config")
		}
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, audience, issuer)
	}

	logger := log.New()
	client := insight.New(insightBase, insightTimeout, logger)
	publisher := api.NewRedisPublisher(rc, updatesChannel, logger)
	registry := workflow.NewRegistry(func(userID string) *workflow.Controller {
		return workflow.NewController(client, logger, func(state domain.BoardState) {
			if err := publisher.Publish(context.Background(), userID, state); err != nil {
				logger.Errorf("publish board update: %v", err)
			}
		})
	})

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddleware("insight_board"))
	e.GET("/metrics", echoprometheus.NewHandler())

	api.Register(e, registry, auth, rc, updatesChannel, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("LISTEN_ADDR"); ok {
		listenAddr = val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
