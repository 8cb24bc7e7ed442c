package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/jrsteele09/go-biteui-client/apiclient"
	"github.com/jrsteele09/go-biteui-client/identity"
	"github.com/jrsteele09/go-biteui-client/internal/config"
	"github.com/jrsteele09/go-biteui-client/internal/ui"
	"github.com/jrsteele09/go-biteui-client/management"
	"github.com/jrsteele09/go-biteui-client/session"
	"github.com/jrsteele09/go-biteui-client/session/filestore"
	"github.com/jrsteele09/go-biteui-client/session/memstore"
	"github.com/jrsteele09/go-biteui-client/session/redisstore"
	"github.com/jrsteele09/go-biteui-client/sessionevents"
)

// app holds the dependencies shared by every command. They are built in
// setup once flags and configuration are known.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	paint   ui.Painter
	metrics *apiclient.Metrics
	reg     *prometheus.Registry

	session  *session.Manager
	api      *apiclient.Client
	identity *identity.Service
	users    *management.Service
	files    *filestore.Store

	closers []func() error
}

func newApp() *cli.App {
	a := &app{}
	return &cli.App{
		Name:    "biteui",
		Usage:   "BiteUI API client",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files to load", Value: cli.NewStringSlice(".env")},
			&cli.StringFlag{Name: "api-url", Usage: "BiteUI API origin", EnvVars: []string{"BITEUI_API_URL"}},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
			&cli.StringFlag{Name: "metrics-file", Usage: "write client metrics to this file on exit"},
		},
		Before: a.setup,
		After:  a.close,
		Commands: []*cli.Command{
			a.loginCommand(),
			a.logoutCommand(),
			a.refreshCommand(),
			a.statusCommand(),
			a.profileCommand(),
			a.permissionsCommand(),
			a.usersCommand(),
			a.versionCommand(),
		},
	}
}

func (a *app) setup(cCtx *cli.Context) error {
	cfg, err := config.Load(cCtx.StringSlice("env-file")...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg
	a.log = newLogger(cfg.GetLogLevel(), cCtx.Bool("verbose"))
	a.paint = ui.NewPainter(os.Stdout)

	store, err := a.tokenStore()
	if err != nil {
		return err
	}
	opts := []session.Option{
		session.WithLogger(a.log),
		session.WithSink(session.LogSink{Log: a.log}),
	}
	if pub, err := a.eventPublisher(); err != nil {
		return err
	} else if pub != nil {
		opts = append(opts, session.WithSink(pub))
	}
	a.session = session.NewManager(store, opts...)

	a.metrics = apiclient.NewMetrics()
	a.reg = prometheus.NewRegistry()
	if err := a.metrics.RegisterCollectors(a.reg); err != nil {
		return err
	}

	baseURL := cfg.GetBaseURL()
	if u := cCtx.String("api-url"); u != "" {
		baseURL = u
	}
	clientOpts := []apiclient.Option{
		apiclient.WithLogger(a.log),
		apiclient.WithTimeout(cfg.GetRequestTimeout()),
		apiclient.WithUserAgent("biteui-cli/" + version),
		apiclient.WithMetrics(a.metrics),
	}
	if limit := cfg.GetRateLimit(); limit > 0 {
		clientOpts = append(clientOpts, apiclient.WithRateLimit(rate.Limit(limit), cfg.GetRateBurst()))
	}
	if a.api, err = apiclient.New(baseURL, a.session, clientOpts...); err != nil {
		return err
	}
	a.identity = identity.NewService(a.api, identity.WithLogger(a.log))
	a.users = management.NewService(a.api)
	return nil
}

func newLogger(level string, verbose bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func (a *app) tokenStore() (session.TokenStore, error) {
	switch a.cfg.GetTokenStore() {
	case config.TokenStoreMemory:
		return memstore.New(), nil
	case config.TokenStoreRedis:
		client, err := a.redisClient(a.cfg.GetRedisURL())
		if err != nil {
			return nil, err
		}
		return redisstore.New(client, redisstore.WithPrefix(a.cfg.GetRedisPrefix())), nil
	default:
		store, err := filestore.Open(a.cfg.GetTokenFile(), filestore.WithLogger(a.log))
		if err != nil {
			return nil, fmt.Errorf("opening token file: %w", err)
		}
		a.files = store
		return store, nil
	}
}

func (a *app) redisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// eventPublisher streams session events to redis when configured.
func (a *app) eventPublisher() (*sessionevents.Publisher, error) {
	url := a.cfg.GetEventsRedisURL()
	if url == "" {
		return nil, nil
	}
	client, err := a.redisClient(url)
	if err != nil {
		return nil, err
	}
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		sessionevents.NewLoggerAdapter(a.log.With().Str("component", "redisstream").Logger()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	pub := sessionevents.NewPublisher(publisher,
		sessionevents.WithTopic(a.cfg.GetEventsTopic()),
		sessionevents.WithLogger(a.log))
	// Closed before the redis client it writes to.
	a.closers = append([]func() error{pub.Close}, a.closers...)
	return pub, nil
}

func (a *app) close(cCtx *cli.Context) error {
	if path := cCtx.String("metrics-file"); path != "" && a.reg != nil {
		if err := prometheus.WriteToTextfile(path, a.reg); err != nil {
			a.log.Warn().Err(err).Str("path", path).Msg("writing metrics")
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Debug().Err(err).Msg("closing")
		}
	}
	a.closers = nil
	return nil
}
