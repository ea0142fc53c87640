package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/async-api/pkg/miniofs"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/analyzer"
	"github.com/airenas/meetscribe/internal/pkg/consul"
	"github.com/airenas/meetscribe/internal/pkg/diarizer"
	"github.com/airenas/meetscribe/internal/pkg/pipeline"
	"github.com/airenas/meetscribe/internal/pkg/postgres"
	"github.com/airenas/meetscribe/internal/pkg/recording"
	"github.com/airenas/meetscribe/internal/pkg/transcriber"
	"github.com/airenas/meetscribe/internal/pkg/utils"
	"github.com/airenas/meetscribe/internal/pkg/worker"
	"github.com/hashicorp/consul/api"
	"github.com/labstack/gommon/color"
	"github.com/spf13/viper"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
)

func main() {
	goapp.StartWithDefault()
	cfg := goapp.Config

	data := &worker.ServiceData{}
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	dbPool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	data.GueClient, err = gue.NewClient(pgxv5.NewConnPool(dbPool))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue")
	}
	data.WorkerCount = defaultV(cfg.GetInt("worker.count"), 2)
	data.Testing = cfg.GetBool("worker.testing")
	data.Timeout = defaultV(cfg.GetDuration("worker.timeout"), time.Hour*2)
	data.Retries = int32(defaultV(cfg.GetInt("worker.retries"), 3))

	filer, err := miniofs.NewFiler(ctx, miniofs.Options{Bucket: cfg.GetString("filer.bucket"),
		URL: cfg.GetString("filer.url"), User: cfg.GetString("filer.user"), Key: cfg.GetString("filer.key"),
		Secure: cfg.GetBool("filer.https")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init filer")
	}
	data.Filer = filer

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}
	machine, err := recording.NewMachine(db)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init recordings")
	}
	sender, err := postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue sender")
	}
	notifier, err := worker.NewNotifier(sender)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init notifier")
	}

	pData := &pipeline.Data{Machine: machine, Notifier: notifier, Filer: filer}
	pData.TranscriptionTimeout = defaultV(cfg.GetDuration("transcriber.timeout"), time.Minute*30)
	pData.AnalysisTimeout = defaultV(cfg.GetDuration("analyzer.timeout"), time.Minute*5)
	pData.Transcriber, err = transcriber.NewClient(cfg.GetString("transcriber.url"), cfg.GetString("transcriber.key"),
		cfg.GetString("transcriber.model"), pData.TranscriptionTimeout)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init transcriber")
	}
	pData.Diarizer, err = initDiarizer(ctx, cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init diarizer")
	}
	if cfg.GetString("analyzer.url") != "" {
		pData.Analyzer, err = analyzer.NewClient(cfg.GetString("analyzer.url"), cfg.GetString("analyzer.key"),
			cfg.GetString("analyzer.model"), pData.AnalysisTimeout)
		if err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't init analyzer")
		}
	}
	data.Runner, err = pipeline.NewOrchestrator(pData)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init pipeline")
	}

	printBanner()

	go utils.RunPerfEndpoint()

	doneCh, err := worker.StartWorkerService(ctx, data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start worker service")
	}
	/////////////////////// Waiting for terminate
	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

// initDiarizer returns nil if no diarizer is configured, transcripts will have no speakers then
func initDiarizer(ctx context.Context, cfg *viper.Viper) (pipeline.Diarizer, error) {
	timeout := cfg.GetDuration("diarizer.timeout")
	if srv := cfg.GetString("diarizer.consulService"); srv != "" {
		consulCfg := api.DefaultConfig()
		if addr := cfg.GetString("diarizer.consul"); addr != "" {
			consulCfg.Address = addr
		}
		res, err := consul.NewProvider(consulCfg, srv, timeout)
		if err != nil {
			return nil, err
		}
		if _, err := res.StartRegistryLoop(ctx, defaultV(cfg.GetDuration("diarizer.checkInterval"), time.Second*20)); err != nil {
			return nil, err
		}
		return res, nil
	}
	if url := cfg.GetString("diarizer.url"); url != "" {
		return diarizer.NewClient(url, timeout)
	}
	return nil, nil
}

func defaultV[T comparable](v, d T) T {
	var e T
	if v == e {
		return d
	}
	return v
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
                    __                      _ __
   ____ ___  ___  / /_______________(_) /_  ___
  / __ ` + "`" + `__ \/ _ \/ __/ ___/ ___/ ___/ / __ \/ _ \
 / / / / / /  __/ /_(__  ) /__/ /  / / /_/ /  __/
/_/ /_/ /_/\___/\__/____/\___/_/  /_/_.___/\___/  v: %s
                      __
 _      ______  _____/ /_____  _____
| | /| / / __ \/ ___/ //_/ _ \/ ___/
| |/ |/ / /_/ / /  / ,< /  __/ /
|__/|__/\____/_/  /_/|_|\___/_/

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/meetscribe"))
}
