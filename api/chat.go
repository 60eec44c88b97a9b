// Package api holds the serverless entry point. The platform invokes Handler
// per request; the pipeline behind it is built once per instance.
package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/young1lin/docsanswer/internal/config"
	"github.com/young1lin/docsanswer/internal/handler"
	"github.com/young1lin/docsanswer/internal/models"
	"github.com/young1lin/docsanswer/internal/pipeline"
	"github.com/young1lin/docsanswer/pkg/logger"
)

// Version is reported to the documentation service as the client version.
var Version = "serverless"

var (
	once       sync.Once
	chat       http.Handler
	corsOrigin = "*"
	initErr    error
)

func setup() {
	cfg, err := config.Load("")
	if err != nil {
		initErr = err
		return
	}
	logger.Init(cfg.Logging.Level, "json")
	if cfg.Server.CORSOrigin != "" {
		corsOrigin = cfg.Server.CORSOrigin
	}

	p, err := pipeline.FromConfig(cfg, Version)
	if err != nil {
		initErr = err
		logger.Error("failed to build pipeline", zap.Error(err))
		return
	}
	chat = handler.NewChatHandler(p, &cfg.Server, Version)
}

// Handler serves the chat endpoint. Routing is done by the platform, so every
// request is treated as a call to /api/chat.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(setup)

	if initErr != nil {
		// Preflight and error bodies still carry CORS headers so browsers can
		// read the configuration error.
		handler.SetCORSHeaders(w, corsOrigin)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		logger.Warn("rejecting request, instance is misconfigured", zap.Error(initErr))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{
			Error:    initErr.Error(),
			Response: pipeline.Guidance(initErr),
		})
		return
	}

	r.URL.Path = "/api/chat"
	chat.ServeHTTP(w, r)
}
