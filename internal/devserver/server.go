package devserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/assetpipe/internal/http"
)

// LiveReloadPath is where the hub is mounted.
const LiveReloadPath = "/livereload"

type Config struct {
	// Listen address, e.g. localhost:35729
	Addr string
	// Directory bundles are served from
	Dir string
	// Origins allowed to load bundles and subscribe to reloads
	Origins []string
}

// Server serves built bundles and pushes reload events to browsers.
type Server struct {
	config Config
	hub    *Hub
	index  http.Handler
	logger zerolog.Logger
}

// New creates a development server. index, when non-nil, renders "/".
func New(config Config, hub *Hub, index http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		config: config,
		hub:    hub,
		index:  index,
		logger: logger,
	}
}

// Handler returns the server's routes wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.config.Dir))

	mux := http.NewServeMux()
	mux.Handle(LiveReloadPath, s.hub)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && s.index != nil {
			s.index.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		files.ServeHTTP(w, r)
	})

	origins := s.config.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	}).Handler(mux)

	handler = httpmiddleware.AccessLogMiddleware(s.logger)(handler)
	return httpmiddleware.ClientIPMiddleware()(handler)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := configureHTTPServer(s.config.Addr, s.Handler())

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Str("dir", s.config.Dir).Msg("Starting development server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// reload streams stay open until the connection is closed
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return srv.Close()
		}
		return err
	}
	return nil
}

// configureHTTPServer leaves WriteTimeout unset because reload streams stay open.
func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
