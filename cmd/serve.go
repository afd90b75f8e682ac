package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fightcard/internal/analysis"
	"github.com/sells-group/fightcard/internal/model"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 30 * time.Second

	headerRunID    = "X-Run-ID"
	headerDegraded = "X-Analysis-Degraded"
)

// cardAnalyzer runs one card through the pipeline.
type cardAnalyzer interface {
	Run(ctx context.Context, card *model.Card) (*analysis.Run, error)
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the card analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(cfg, false)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newHandler(env.Pipeline, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newHandler mounts the API routes and middleware.
func newHandler(a cardAnalyzer, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{headerRunID, headerDegraded},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":  "UFC Card Analysis API",
			"endpoint": "/analyze-card",
		})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/analyze-card", analyzeCardHandler(a))

	return r
}

type errorBody struct {
	Detail string   `json:"detail"`
	Errors []string `json:"errors,omitempty"`
}

func analyzeCardHandler(a cardAnalyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		var card model.Card
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&card); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
					Detail: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				})
				return
			}
			writeJSON(w, http.StatusBadRequest, errorBody{
				Detail: "invalid request body",
				Errors: []string{err.Error()},
			})
			return
		}

		run, err := a.Run(r.Context(), &card)
		if err != nil {
			writeRunError(w, r, err)
			return
		}

		w.Header().Set(headerRunID, run.ID.String())
		if degraded := run.Degraded(); len(degraded) > 0 {
			w.Header().Set(headerDegraded, roleList(degraded))
		}
		writeJSON(w, http.StatusOK, run.Analysis)
	}
}

func writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *model.ValidationError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid card", Errors: invalid.Problems})
		return
	}

	var pipeErr *analysis.PipelineError
	if errors.As(err, &pipeErr) {
		w.Header().Set(headerRunID, pipeErr.RunID.String())
	}

	log := zap.L().With(zap.String("request_id", middleware.GetReqID(r.Context())))
	if errors.Is(err, analysis.ErrNoPredictions) {
		log.Warn("analyze card: no predictions", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorBody{Detail: err.Error()})
		return
	}

	log.Error("analyze card failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "analysis failed"})
}

func roleList(roles []model.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
