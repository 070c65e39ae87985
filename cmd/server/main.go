package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/AryanRai/AriesUI-sub001/internal/auth"
	"github.com/AryanRai/AriesUI-sub001/internal/config"
	mw "github.com/AryanRai/AriesUI-sub001/internal/middleware"
	"github.com/AryanRai/AriesUI-sub001/internal/persist"
	"github.com/AryanRai/AriesUI-sub001/internal/pgstore"
	"github.com/AryanRai/AriesUI-sub001/internal/profile"
	"github.com/AryanRai/AriesUI-sub001/internal/stream"
	"github.com/AryanRai/AriesUI-sub001/internal/typeid"
)

// localProfileID is the anonymous scratch profile: connecting to it needs no
// account, mirroring the desktop app's local-first mode.
const localProfileID = "prof_local"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	queries := pgstore.New(pool)

	authService := auth.NewService(queries, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	profileService := profile.NewService(queries)
	profileHandler := profile.NewHandler(profileService)

	// The anonymous local profile lives on disk, not in Postgres.
	fileStore, err := persist.NewFileStore(cfg.DataDir)
	if err != nil {
		slog.Error("create data dir", "error", err)
		os.Exit(1)
	}

	// Layout loader for the stream hub
	docLoader := func(profileID string) (json.RawMessage, error) {
		if profileID == localProfileID {
			return fileStore.Load(context.Background(), profileID)
		}
		snap, err := queries.GetLatestSnapshot(context.Background(), profileID)
		if err != nil {
			return nil, err
		}
		return snap.Document, nil
	}

	// Layout saver for the stream hub
	docSaver := func(profileID string, doc json.RawMessage) error {
		if profileID == localProfileID {
			return fileStore.Save(context.Background(), profileID, doc)
		}
		nextVersion := int32(1)
		current, err := queries.GetLatestSnapshot(context.Background(), profileID)
		if err == nil {
			nextVersion = current.Version + 1
		}

		_, err = queries.CreateSnapshot(context.Background(), pgstore.CreateSnapshotParams{
			ID:        typeid.NewSnapshotID(),
			ProfileID: profileID,
			Version:   nextVersion,
			Document:  doc,
		})
		if err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		return nil
	}

	hub := stream.NewHub(docLoader, docSaver)
	go hub.Run()
	go hub.RunAutoSave(ctx, cfg.AutoSaveInterval)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS)

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/profiles", profileHandler.List).Methods("GET")
	api.HandleFunc("/profiles", profileHandler.Create).Methods("POST")
	api.HandleFunc("/profiles/{profileId}", profileHandler.Get).Methods("GET")
	api.HandleFunc("/profiles/{profileId}", profileHandler.Rename).Methods("PATCH")
	api.HandleFunc("/profiles/{profileId}", profileHandler.Delete).Methods("DELETE")
	api.HandleFunc("/profiles/{profileId}/snapshots", profileHandler.SaveSnapshot).Methods("POST")
	api.HandleFunc("/profiles/{profileId}/snapshots/latest", profileHandler.GetLatestSnapshot).Methods("GET")
	api.HandleFunc("/profiles/{profileId}/export", profileHandler.Export).Methods("GET")
	api.HandleFunc("/profiles/{profileId}/import", profileHandler.Import).Methods("POST")

	// WebSocket endpoint
	originPatterns := parseOrigins(cfg.AllowedOrigins)
	r.HandleFunc("/ws/profile/{profileId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, queries, originPatterns)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first to save all dirty layouts
		slog.Info("saving all profiles...")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *stream.Hub, authSvc *auth.Service, queries *pgstore.Queries, originPatterns []string) {
	vars := mux.Vars(r)
	profileID := vars["profileId"]

	var userID string
	var displayName string

	if profileID == localProfileID {
		userID = "anon-" + uuid.New().String()[:8]
		displayName = "Anonymous"
	} else {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		var err error
		userID, err = authSvc.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		prof, err := queries.GetProfile(r.Context(), profileID)
		if err != nil {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		if prof.OwnerID != userID {
			http.Error(w, "not the profile owner", http.StatusForbidden)
			return
		}

		user, err := authSvc.GetUser(r.Context(), userID)
		if err != nil {
			http.Error(w, "user not found", http.StatusInternalServerError)
			return
		}
		displayName = user.DisplayName
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := stream.NewClient(hub, conn, userID, displayName, profileID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// parseOrigins converts the comma-separated ALLOWED_ORIGINS value into the
// host patterns the websocket library matches against.
func parseOrigins(allowed string) []string {
	var patterns []string
	for _, origin := range strings.Split(allowed, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}
