// Package daemon assembles and supervises a running provider.
//
// Ownership boundary:
// - building the tree from its template
// - wiring provider, transport reactor and admin HTTP together
// - process lifecycle: signal handling and errgroup supervision
package daemon

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/emberctl/internal/admin"
	"github.com/danmuck/emberctl/internal/config"
	"github.com/danmuck/emberctl/internal/logging"
	"github.com/danmuck/emberctl/internal/provider"
	"github.com/danmuck/emberctl/internal/transport"
	"github.com/danmuck/emberctl/internal/tree"
)

// Config is the resolved runtime configuration. An empty TreeFile serves the
// built-in sample tree; an empty Admin.ListenAddr disables admin HTTP.
type Config struct {
	TreeFile  string
	Transport transport.Config
	Provider  provider.Config
	Admin     admin.Config
}

func DefaultConfig() Config {
	return Config{
		Transport: transport.DefaultConfig(),
		Provider:  provider.DefaultConfig(),
		Admin:     admin.DefaultConfig(),
	}
}

// Service runs one provider on one listener.
type Service struct {
	cfg      Config
	tree     *tree.Tree
	server   *transport.Server
	provider *provider.Provider
	admin    *admin.Server
	log      zerolog.Logger
}

func New(cfg Config) (*Service, error) {
	t, err := loadTree(cfg.TreeFile)
	if err != nil {
		return nil, err
	}
	srv := transport.NewServer(cfg.Transport)
	p, err := provider.New(cfg.Provider, t, srv)
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      cfg,
		tree:     t,
		server:   srv,
		provider: p,
		log:      logging.Component("daemon"),
	}
	if strings.TrimSpace(cfg.Admin.ListenAddr) != "" {
		s.admin = admin.New(cfg.Admin, backend{srv: srv, p: p})
	}
	return s, nil
}

func loadTree(path string) (*tree.Tree, error) {
	if strings.TrimSpace(path) != "" {
		return config.LoadTree(path)
	}
	sample, err := config.Template(config.KindTree)
	if err != nil {
		return nil, err
	}
	tmpl, err := config.ParseTreeTemplate([]byte(sample))
	if err != nil {
		return nil, fmt.Errorf("sample tree: %w", err)
	}
	return config.Build(tmpl)
}

func (s *Service) Server() *transport.Server    { return s.server }
func (s *Service) Provider() *provider.Provider { return s.provider }

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs the reactor and, when configured, admin HTTP until ctx is done
// or either fails.
func (s *Service) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.server.ListenAndServe(gctx, s.provider)
	})
	if s.admin != nil {
		g.Go(func() error {
			return s.admin.Serve(gctx)
		})
	}
	s.log.Info().
		Str("listen", s.cfg.Transport.ListenAddr).
		Str("admin", s.cfg.Admin.ListenAddr).
		Int("elements", s.tree.Len()).
		Str("response_style", s.cfg.Provider.ResponseStyle).
		Bool("echo", s.cfg.Provider.EchoChanges).
		Msg("daemon.Serve starting")
	err := g.Wait()
	s.provider.Close()
	s.log.Info().Err(err).Msg("daemon.Serve stopped")
	return err
}

// Update applies a local change on the reactor and broadcasts it.
func (s *Service) Update(ctx context.Context, fn func(t *tree.Tree)) error {
	return s.server.Do(ctx, func() { s.provider.Update(fn) })
}

// backend adapts the reactor and provider to the admin surface.
type backend struct {
	srv *transport.Server
	p   *provider.Provider
}

func (b backend) Do(ctx context.Context, fn func()) error { return b.srv.Do(ctx, fn) }
func (b backend) Ready() <-chan struct{}                  { return b.srv.Ready() }
func (b backend) Snapshot() tree.View                     { return b.p.Tree().Snapshot() }
func (b backend) Connections() []transport.ConnInfo       { return b.srv.Conns() }
