// Package server wires the chat gateway, the file transfer service and the
// health endpoint together and runs them until the process is signalled.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophtalk/internal/filex"
	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"github.com/dmitrijs2005/gophtalk/internal/server/autoai"
	"github.com/dmitrijs2005/gophtalk/internal/server/chat"
	"github.com/dmitrijs2005/gophtalk/internal/server/config"
	"github.com/dmitrijs2005/gophtalk/internal/server/credentials"
	"github.com/dmitrijs2005/gophtalk/internal/server/files"
	"github.com/dmitrijs2005/gophtalk/internal/server/friends"
	"github.com/dmitrijs2005/gophtalk/internal/server/health"
	"github.com/dmitrijs2005/gophtalk/internal/server/ledger"
	"github.com/dmitrijs2005/gophtalk/internal/server/presence"
	"github.com/dmitrijs2005/gophtalk/internal/server/protocol"
	"github.com/dmitrijs2005/gophtalk/internal/server/webhook"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config *config.Config
	logger logging.Logger
	chat   *chat.Server
	files  *files.Server
	health *health.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	return newApp(ctx, cfg, logging.NewJSONLogger(os.Stdout, cfg.LogLevel))
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	gin.SetMode(gin.ReleaseMode)

	if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS keypair: %w", err)
	}
	tlsConfig := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}

	creds := credentials.NewService(credentials.NewFileRepository(cfg.UsersFile(), cfg.TempPasswordsFile()))

	graph, err := friends.Open(ctx, cfg.FriendsFile(), logger)
	if err != nil {
		return nil, fmt.Errorf("friends init error: %w", err)
	}

	led, err := ledger.Open(ctx, cfg.ChatFile(), logger)
	if err != nil {
		return nil, fmt.Errorf("chat history init error: %w", err)
	}

	hooks := webhook.NewClient(webhook.Endpoints{
		AutoAI:    webhook.Endpoint{URL: cfg.AutoAIURL, Timeout: cfg.AutoAITimeout},
		Summarize: webhook.Endpoint{URL: cfg.SummarizeURL, Timeout: cfg.SummarizeTimeout},
		Helper:    webhook.Endpoint{URL: cfg.HelperURL, Timeout: cfg.HelperTimeout},
		Playbook:  webhook.Endpoint{URL: cfg.PlaybookURL, Timeout: cfg.PlaybookTimeout},
		FileMania: webhook.Endpoint{URL: cfg.FileManiaURL, Timeout: cfg.FileManiaTimeout},
	}, logger)

	scheduler := autoai.NewScheduler()
	relay := autoai.NewRelay(scheduler, hooks, led, cfg.AutoAIHistory, protocol.AutoAIError, logger.With("module", "autoai"))

	chatServer := chat.NewServer(chat.Options{
		TLS:           tlsConfig,
		AssistHistory: cfg.AssistHistory,
		PublicFileURL: cfg.PublicFileURL,
		TunnelBaseURL: cfg.TunnelBaseURL,
	}, chat.Deps{
		Auth:      creds,
		Friends:   graph,
		Ledger:    led,
		Hub:       presence.NewHub(),
		Scheduler: scheduler,
		Relay:     relay,
		Assist:    hooks,
	}, logger)

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("file storage init error: %w", err)
	}
	fileService := files.NewService(store, cfg.PublicFileURL, cfg.MaxUploadBytes, logger)

	return &App{
		config: cfg,
		logger: logger,
		chat:   chatServer,
		files:  files.NewServer(fileService, logger),
		health: health.New(logger),
	}, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (files.BlobStore, error) {
	switch cfg.StorageType {
	case config.StorageLocal, "":
		return files.NewLocalBlobStore(cfg.FileDir)
	case config.StorageS3:
		return files.NewS3BlobStore(ctx, files.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			Prefix:       cfg.S3Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

type listeners struct {
	chat, files, health net.Listener
}

func (l listeners) close() {
	for _, ln := range []net.Listener{l.chat, l.files, l.health} {
		if ln != nil {
			_ = ln.Close()
		}
	}
}

// listen binds all three addresses up front so a port clash fails the
// start instead of leaving a half-running process.
func (app *App) listen(ctx context.Context) (listeners, error) {
	var (
		lc  net.ListenConfig
		ls  listeners
		err error
	)

	if ls.chat, err = lc.Listen(ctx, "tcp", app.config.ChatAddr); err != nil {
		return ls, fmt.Errorf("chat listen: %w", err)
	}

	if ls.files, err = lc.Listen(ctx, "tcp", app.config.FileAddr); err != nil {
		ls.close()
		return listeners{}, fmt.Errorf("file listen: %w", err)
	}
	if ls.health, err = lc.Listen(ctx, "tcp", app.config.HealthAddr); err != nil {
		ls.close()
		return listeners{}, fmt.Errorf("health listen: %w", err)
	}
	return ls, nil
}

func (app *App) serve(ctx context.Context, ls listeners) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.health.Serve(gctx, ls.health)
	})
	g.Go(func() error {
		app.health.SetServing(health.ServiceChat, true)
		defer app.health.SetServing(health.ServiceChat, false)
		return app.chat.Serve(gctx, ls.chat)
	})
	g.Go(func() error {
		app.health.SetServing(health.ServiceFiles, true)
		defer app.health.SetServing(health.ServiceFiles, false)
		return app.files.Serve(gctx, ls.files)
	})

	return g.Wait()
}

// Run serves until ctx is cancelled, a termination signal arrives or one
// of the servers fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	ls, err := app.listen(ctx)
	if err != nil {
		return err
	}

	app.logger.Info(ctx, "Listening",
		"chat", ls.chat.Addr().String(),
		"files", ls.files.Addr().String(),
		"health", ls.health.Addr().String())

	err = app.serve(ctx, ls)
	app.logger.Info(ctx, "App stopped")
	return err
}
