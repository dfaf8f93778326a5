package fbapp

import (
	"context"
	"fmt"

	"funnelboard/internal/models/fbanalytics"
	"funnelboard/internal/models/fbauth"
	"funnelboard/internal/models/fbcaptchas"
	"funnelboard/internal/models/fbconfig"
	"funnelboard/internal/models/fbcredentials"
	"funnelboard/internal/models/fbdb"
	"funnelboard/internal/models/fbfunnels"
	"funnelboard/internal/models/fbgeo"
	"funnelboard/internal/models/fbmarkdown"
	"funnelboard/internal/models/fbmetrics"
	"funnelboard/internal/models/fbpayments"
	"funnelboard/internal/models/fbredis"
	"funnelboard/internal/models/fbusers"
	"funnelboard/internal/models/fbvisitors"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Funnelboard struct {
	Configuration *fbconfig.Config
	Db            *gorm.DB
	Redis         *redis.Client
	Geo           *fbgeo.Resolver
	Metrics       *fbmetrics.Metrics
	Issuer        *fbauth.Issuer

	Users       *fbusers.Service
	Funnels     *fbfunnels.Service
	Visitors    *fbvisitors.Service
	Credentials *fbcredentials.Service
	Payments    *fbpayments.Service
	Analytics   *fbanalytics.AnalyticsService
	Realtime    *fbanalytics.RealtimeCounter
	Captcha     *fbcaptchas.Captchas
	Markdown    *fbmarkdown.Renderer
	Scripts     *fbfunnels.ScriptRenderer

	Version string
}

// Models lists every table of the application.
func Models() []any {
	var models []any
	models = append(models, fbusers.Models()...)
	models = append(models, fbfunnels.Models()...)
	models = append(models, fbvisitors.Models()...)
	models = append(models, fbcredentials.Models()...)
	models = append(models, fbpayments.Models()...)
	return models
}

func Migrate(db *gorm.DB) error {
	return fbdb.Migrate(db, Models()...)
}

// Init opens the database, redis and the geoip file described by the
// configuration, migrates, seeds the operator and builds the services.
func Init(config *fbconfig.Config, version string) (*Funnelboard, error) {
	level := "warn"
	if config.Logger.Level == "debug" || !config.Production {
		level = "trace"
	}
	db, err := fbdb.Open(config.Database, level)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}

	client := fbredis.NewClient(config.Database.Redis)
	if client != nil {
		if err := fbredis.Ping(context.Background(), client); err != nil {
			log.Warn().Err(err).Str("addr", config.Database.Redis.Addr).Msg("redis unreachable, using memory stores")
			_ = client.Close()
			client = nil
		}
	}

	geo, err := fbgeo.Open(config.GeoIP.Path)
	if err != nil {
		return nil, err
	}

	app := New(config, db, client, geo)
	app.Version = version

	if _, err := app.Users.SeedAdmin(context.Background(), config.User); err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}
	return app, nil
}

// New builds the services over already opened stores. client and geo may
// be nil.
func New(config *fbconfig.Config, db *gorm.DB, client *redis.Client, geo *fbgeo.Resolver) *Funnelboard {
	app := &Funnelboard{
		Configuration: config,
		Db:            db,
		Redis:         client,
		Geo:           geo,
		Metrics:       fbmetrics.New(),
		Issuer:        fbauth.NewIssuer(config.Auth.JWTSecret, config.Auth.TokenTTL),
		Markdown:      fbmarkdown.New(),
		Scripts:       fbfunnels.NewScriptRenderer(),
		Realtime:      fbanalytics.NewRealtimeCounter(client),
	}

	app.Users = fbusers.NewService(db)
	app.Funnels = fbfunnels.NewService(db)
	app.Visitors = fbvisitors.NewService(db, geo)
	app.Credentials = fbcredentials.NewService(db)
	app.Payments = fbpayments.NewService(db, app.Funnels, app.Credentials, fbpayments.NewGateway(config.Payments))
	app.Analytics = fbanalytics.NewAnalyticsService(db, app.Funnels, app.Visitors, app.Realtime)
	if config.Captcha.Enabled {
		app.Captcha = fbcaptchas.New(client)
	}
	return app
}

// meteredSweeper counts the rows touched by the maintenance jobs.
type meteredSweeper struct {
	fbanalytics.Sweeper
	metrics *fbmetrics.Metrics
}

func (m meteredSweeper) MarkInactiveOffline(ctx context.Context) (int64, error) {
	n, err := m.Sweeper.MarkInactiveOffline(ctx)
	if err == nil {
		m.metrics.Sweep("offline", n)
	}
	return n, err
}

func (m meteredSweeper) CleanupOldVisitors(ctx context.Context, days int) (int64, error) {
	n, err := m.Sweeper.CleanupOldVisitors(ctx, days)
	if err == nil {
		m.metrics.Sweep("cleanup", n)
	}
	return n, err
}

func (fb *Funnelboard) StartMaintenance() (*cron.Cron, error) {
	return fbanalytics.StartMaintenance(fb.Configuration.Maintenance, meteredSweeper{Sweeper: fb.Visitors, metrics: fb.Metrics})
}

func (fb *Funnelboard) Close() {
	if fb.Redis != nil {
		_ = fb.Redis.Close()
	}
	if err := fb.Geo.Close(); err != nil {
		log.Warn().Err(err).Msg("geoip close")
	}
	if sqlDB, err := fb.Db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
