package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jo-hoe/itemlens/internal/backend"
	"github.com/jo-hoe/itemlens/internal/common"
	"github.com/jo-hoe/itemlens/internal/core"
	frontend "github.com/jo-hoe/itemlens/internal/frontend"
	"github.com/jo-hoe/itemlens/internal/session"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func getConfigPath() string {
	// First check if config path is provided via environment variable
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}

	// Default to config.yaml in current working directory
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return filepath.Join(cwd, "config.yaml")
}

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	// Load configuration
	configPath := getConfigPath()
	config, err := core.LoadConfigOrDefaults(configPath)
	if err != nil {
		log.Printf("failed to load config from %s: %v", configPath, err)
		panic(err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	coreService, err := core.NewCoreService(startCtx, config)
	if err != nil {
		log.Printf("failed to start core service: %v", err)
		panic(err)
	}

	sessionStore, err := session.NewStore(startCtx, session.StoreConfig{
		Type:      config.Session.Type,
		Address:   config.Session.Address,
		Password:  config.Session.Password,
		DB:        config.Session.DB,
		KeyPrefix: config.Session.KeyPrefix,
	})
	if err != nil {
		log.Printf("failed to open session store: %v", err)
		panic(err)
	}
	sessions := session.NewManager(sessionStore, config.Auth.SecretKey, config.SessionLifetime(), config.Auth.SecureCookie)
	guard, err := session.NewGuard(config.Auth.Username, config.Auth.Password, config.Auth.MaxLoginTries, config.LockoutDuration())
	if err != nil {
		log.Printf("invalid login configuration: %v", err)
		panic(err)
	}

	server := defineServer()

	apiService := backend.NewAPIService(config, coreService, sessions)
	apiService.SetRoutes(server)
	frontendService := frontend.NewFrontendService(config, coreService, sessions, guard)
	frontendService.SetRoutes(server)

	portString := fmt.Sprintf(":%d", config.Port)

	// Start HTTP server in a goroutine to allow graceful shutdown
	go func() {
		if err := server.Start(portString); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Printf("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if err := sessionStore.Close(); err != nil {
		log.Printf("session store close error: %v", err)
	}
	if err := coreService.Close(); err != nil {
		log.Printf("core service close error: %v", err)
	}
}

func defineServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Configure request logger to skip the health check probe
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/probe"
		},
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogRoutePath: true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("%s %s (route=%s) - Status: %d - Latency: %v - Error: %v - RemoteIP: %s",
					v.Method, v.URI, v.RoutePath, v.Status, v.Latency, v.Error, v.RemoteIP)
			} else {
				log.Printf("%s %s (route=%s) - Status: %d - Latency: %v - RemoteIP: %s",
					v.Method, v.URI, v.RoutePath, v.Status, v.Latency, v.RemoteIP)
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Pre(middleware.RemoveTrailingSlash())

	e.Validator = &common.GenericEchoValidator{}

	return e
}
