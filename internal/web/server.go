// Package web serves guild calendars over HTTP.
package web

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	appLog "venuebot/internal/log"
	"venuebot/internal/scheduling"
)

// CalendarSource renders a guild's events as iCalendar data. It returns
// scheduling.ErrNotFound for guilds it does not serve.
type CalendarSource interface {
	Calendar(ctx context.Context, guildID string) ([]byte, error)
}

type Server struct {
	source     CalendarSource
	feedSecret string
	router     chi.Router
}

// NewServer serves calendars of source. Feeds need a token derived from
// feedSecret; an empty secret disables them.
func NewServer(source CalendarSource, feedSecret string) *Server {
	s := &Server{source: source, feedSecret: feedSecret}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger)

	r.Get("/healthz", s.health)
	r.Get("/guilds/{guildID}/events.ics", s.calendar)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("http server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var snowflake = regexp.MustCompile(`^\d{1,20}$`)

// FeedToken is the access token of a guild's calendar feed.
func FeedToken(secret, guildID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(guildID))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// FeedURL is the subscribable calendar address of a guild under baseURL.
func FeedURL(baseURL, secret, guildID string) string {
	return strings.TrimRight(baseURL, "/") + "/guilds/" + guildID + "/events.ics?token=" +
		url.QueryEscape(FeedToken(secret, guildID))
}

func (s *Server) authorized(r *http.Request, guildID string) bool {
	if s.feedSecret == "" {
		return false
	}
	token := r.URL.Query().Get("token")
	return hmac.Equal([]byte(token), []byte(FeedToken(s.feedSecret, guildID)))
}

// calendar handles GET /guilds/{guildID}/events.ics?token=...
func (s *Server) calendar(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	if !snowflake.MatchString(guildID) {
		writeError(w, http.StatusBadRequest, "invalid guild id")
		return
	}
	// a bad token looks the same as an unknown guild
	if !s.authorized(r, guildID) {
		writeError(w, http.StatusNotFound, "unknown guild")
		return
	}

	data, err := s.source.Calendar(r.Context(), guildID)
	if errors.Is(err, scheduling.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown guild")
		return
	}
	if err != nil {
		appLog.Error("calendar export failed", err, "guild", guildID)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}
