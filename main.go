package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"funnelboard/internal/fbapp"
	"funnelboard/internal/models/fbconfig"
	"funnelboard/internal/models/fblog"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const VERSION string = "1.0.0"

// BuildID is set at link time.
var BuildID string

func initConfiguration(args []string) (*fbconfig.Config, error) {
	configFile, shouldCreateExample, versionDisplay, err := parseCommandLineArgs(args)
	if err != nil {
		fmt.Println("Usage:")
		fmt.Println("  funnelboard -config funnelboard.yaml")
		fmt.Println("  funnelboard -example  (create an example file)")
		fmt.Println("  funnelboard -version  (print the version)")
		os.Exit(1)
	}

	if versionDisplay {
		println(BuildID)
		os.Exit(0)
	}

	fbconfig.CreateExample(shouldCreateExample, configFile)

	return fbconfig.Load(configFile)
}

func parseCommandLineArgs(args []string) (configFile string, shouldCreateExample bool, versionDisplay bool, err error) {
	fs := flag.NewFlagSet("funnelboard", flag.ContinueOnError)
	config := fs.String("config", fbconfig.DefaultFilename, "YAML configuration file")
	example := fs.Bool("example", false, "write an example configuration file")
	version := fs.Bool("version", false, "print the version")
	if err := fs.Parse(args); err != nil {
		return "", false, false, err
	}

	if *version {
		return "", false, true, nil
	}

	if *config == "" {
		return "", false, false, fmt.Errorf("configuration file required")
	}

	return *config, *example, false, nil
}

func newServer(app *fbapp.Funnelboard) (*gin.Engine, error) {
	if app.Configuration.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	return app.Router()
}

func startServer(ctx context.Context, app *fbapp.Funnelboard, r *gin.Engine) error {
	conf := app.Configuration

	if conf.Listen.Metrics != "" {
		go func() {
			if err := app.Metrics.Serve(ctx, conf.Listen.Metrics); err != nil {
				log.Error().Err(err).Msg("metrics listener")
			}
		}()
	}

	srv := &http.Server{
		Addr:              conf.Listen.Website,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.Warn().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Msgf("API listening on http://%s/api", conf.Listen.Website)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	if BuildID == "" {
		BuildID = VERSION
	}

	conf, err := initConfiguration(os.Args[1:])
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if err := fblog.InitLogger(conf.Logger, conf.Production); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fbconfig.DisplayConfiguration(conf, BuildID)

	app, err := fbapp.Init(conf, BuildID)
	if err != nil {
		log.Fatal().Err(err).Msg("initialisation failed")
	}
	defer app.Close()

	scheduler, err := app.StartMaintenance()
	if err != nil {
		log.Fatal().Err(err).Msg("maintenance scheduler")
	}
	defer scheduler.Stop()

	r, err := newServer(app)
	if err != nil {
		log.Fatal().Err(err).Msg("router")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startServer(ctx, app, r); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
