package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"postgate/internal/config"
	"postgate/internal/files"
	"postgate/internal/handlers"
	"postgate/internal/image"
	"postgate/internal/logger"
	"postgate/internal/services"
	"postgate/internal/session"
	"postgate/internal/social"
	"postgate/internal/storage"
)

var ErrAlreadyStarted = errors.New("server already started")

// Server owns the wired HTTP stack and its listener.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	http   *http.Server

	mu       sync.Mutex
	listener net.Listener
	done     chan error
}

// NewServer builds every component from cfg. client may be nil, in which
// case the Telegram client is used.
func NewServer(cfg *config.Config, client social.Client, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	store, err := session.NewStore(cfg.SessionDir)
	if err != nil {
		return nil, err
	}
	scratch, err := files.NewScratch(cfg.TempDir)
	if err != nil {
		return nil, err
	}

	if client == nil {
		var opts []social.TelegramOption
		if cfg.Telegram.APIURL != "" {
			opts = append(opts, social.WithTelegramAPI(cfg.Telegram.APIURL))
		}
		client = social.NewTelegramClient(log, opts...)
	}

	manager := session.NewManager(store, client, storage.NewAccountLocks(), log)
	fetcher := files.NewFetcher(scratch, cfg.FetchTimeout.Std(), cfg.MaxFileSize, log)

	var preparer services.ImagePreparer
	if cfg.Image.Prepare {
		assetLoader := files.NewAssetLoader(cfg.Image.OverlayPath(), cfg.Image.FontPath())
		if _, err := assetLoader.Load(); err != nil {
			return nil, err
		}
		preparer = services.NewImageService(assetLoader, &image.Processor{}, scratch, services.ImageOptions{
			MaxSide:        cfg.Image.MaxSide,
			Square:         cfg.Image.Square,
			JPEGQuality:    cfg.Image.JPEGQuality,
			OverlayOpacity: cfg.Image.OverlayOpacity,
			Watermark:      cfg.Image.Watermark,
		})
	}

	postService := services.NewPostService(manager, client, preparer, log)
	postHandler := handlers.NewPostHandler(postService, fetcher, scratch, cfg.MaxFileSize, log)

	return &Server{
		cfg:    cfg,
		logger: log,
		http: &http.Server{
			Handler:           handlers.NewRouter(postHandler, cfg.CORSOrigins, log),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout.Std(),
			ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
		},
	}, nil
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln
	s.done = make(chan error, 1)

	go func() {
		s.logger.Info("listening", slog.String("addr", ln.Addr().String()),
			slog.String("session_dir", s.cfg.SessionDir), slog.String("temp_dir", s.cfg.TempDir))
		err := s.http.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
		close(s.done)
	}()
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done reports the serve error, or nil after a clean shutdown.
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.listener != nil
	s.mu.Unlock()
	if !started {
		return nil
	}

	s.logger.Info("shutting down")
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown incomplete", logger.Error(err))
		return err
	}
	return nil
}
