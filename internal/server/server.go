package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"smarttracker/internal/attachment"
	"smarttracker/internal/store"
	"smarttracker/internal/upload"
)

const (
	allowRemoteEnvKey         = "SMARTTRACKER_ALLOW_REMOTE"
	readHeaderTimeout         = 5 * time.Second
	readTimeout               = 30 * time.Second
	writeTimeout              = 60 * time.Second
	idleTimeout               = 60 * time.Second
	uploadConcurrencyLimit    = 4
	defaultMultipartMaxMemory = 8 << 20 // 8 MiB
	multipartOverheadBytes    = 1 << 20 // form fields and part headers
)

// Options configures the HTTP surface around the activity store.
type Options struct {
	// PublicURL overrides the scheme and host used in image URLs.
	PublicURL string
	// PublicPath is the URL prefix the content directory is served under.
	PublicPath         string
	CORSOrigins        []string
	MultipartMaxMemory int64
	Version            string
}

// Server wraps HTTP handlers for the smarttracker API.
type Server struct {
	addr            string
	store           store.ActivityStore
	uploads         *upload.Receiver
	publicURL       string
	publicPath      string
	corsOrigins     map[string]struct{}
	multipartMemory int64
	version         string
	logger          *slog.Logger
	uploadLimiter   chan struct{}
}

// New creates a new server instance. uploads may be nil, in which case image
// parts are rejected.
func New(addr string, activities store.ActivityStore, uploads *upload.Receiver, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	publicPath := "/" + strings.Trim(strings.TrimSpace(opts.PublicPath), "/")
	if publicPath == "/" {
		publicPath = attachment.DefaultPublicPath
	}
	memory := opts.MultipartMaxMemory
	if memory <= 0 {
		memory = defaultMultipartMaxMemory
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}

	var origins map[string]struct{}
	for _, origin := range opts.CORSOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origins == nil {
			origins = map[string]struct{}{}
		}
		origins[origin] = struct{}{}
	}

	return &Server{
		addr:            addr,
		store:           activities,
		uploads:         uploads,
		publicURL:       strings.TrimRight(strings.TrimSpace(opts.PublicURL), "/"),
		publicPath:      publicPath,
		corsOrigins:     origins,
		multipartMemory: memory,
		version:         version,
		logger:          logger,
		uploadLimiter:   make(chan struct{}, uploadConcurrencyLimit),
	}
}

// Handler returns the full middleware chain around the API routes.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withCORS(s.routes()))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer().ListenAndServe()
}

func (s *Server) httpServer() *http.Server {
	s.log().Info("starting server", "addr", s.addr, "public_path", s.publicPath)
	return &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
