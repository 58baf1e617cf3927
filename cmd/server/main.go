// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Halcyon-Ink/StoryLoom/internal/api"
	"github.com/Halcyon-Ink/StoryLoom/internal/app"
	"github.com/Halcyon-Ink/StoryLoom/internal/config"
	"github.com/Halcyon-Ink/StoryLoom/internal/di"
	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("starting StoryLoom server...")

	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	createDirectories(baseConfig)

	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("initializing configuration: %v", err)
	}

	if err := app.InitServices(); err != nil {
		log.Fatalf("initializing services: %v", err)
	}
	log.Printf("services initialized: %v", di.GetContainer().Names())

	if err := checkCriticalServices(); err != nil {
		log.Fatalf("service check failed: %v", err)
	}

	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("setting up routes: %v", err)
	}

	log.Printf("listening on http://localhost:%s", baseConfig.Port)
	runWithGracefulShutdown(router, baseConfig.Port)
}

func checkCriticalServices() error {
	container := di.GetContainer()
	for _, name := range []string{"storage", "llm", "story", "manuscript", "extraction", "config"} {
		if container.Get(name) == nil {
			return fmt.Errorf("service %q not registered", name)
		}
	}
	return nil
}

func runWithGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("server stopped")
}

func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "stories"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("creating directory %s: %v", dir, err)
		}
	}
}
