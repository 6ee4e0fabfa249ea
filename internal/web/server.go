package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/slotchaser/internal/ack"
	"github.com/example/slotchaser/internal/auth"
)

//go:embed templates/*.html
var fs embed.FS

const operatorName = "operator"

type Server struct {
	Auth *auth.Store
	Hub  *ack.Hub
	Log  *slog.Logger
}

type tmplData struct {
	Title    string
	Operator string

	Flash   string
	Pending []ack.Pending
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("/ack", s.Auth.RequireAuth(http.HandlerFunc(s.handleAck)))

	return s.logging(mux)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	op, _ := auth.OperatorFromContext(r.Context())
	s.render(w, "templates/pending.html", tmplData{
		Title:    "Waiting",
		Operator: op,
		Flash:    r.URL.Query().Get("flash"),
		Pending:  s.Hub.Pending(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.Auth.Authenticate(r.FormValue("password")); err != nil {
			s.log().Warn("operator login rejected", "remote", r.RemoteAddr)
			s.renderStatus(w, http.StatusUnauthorized, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid password"})
			return
		}
		if err := s.Auth.SetSession(w, r, operatorName); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// handleAck releases the posted instance, or the oldest waiter when the
// form has no instance.
func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := strings.TrimSpace(r.FormValue("instance"))
	var err error
	if id == "" {
		id, err = s.Hub.AckOldest()
	} else {
		err = s.Hub.Ack(id)
	}
	if err != nil {
		http.Redirect(w, r, "/?flash="+template.URLQueryEscaper(err.Error()), http.StatusSeeOther)
		return
	}
	s.log().Info("purchase acknowledged from web", "instance", id)
	http.Redirect(w, r, "/?flash="+template.URLQueryEscaper("continuing "+id), http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	s.renderStatus(w, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, status int, name string, data tmplData) {
	t, err := template.ParseFS(fs, "templates/base.html", name)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log().Debug("http request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

func (s *Server) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// Start serves h on addr until ctx ends.
func Start(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("operator console listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
