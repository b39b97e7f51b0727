// Package main: explorer service.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/RustLabx/rstoken/explorer"
	"github.com/RustLabx/rstoken/lib/block"
	"github.com/RustLabx/rstoken/lib/config"
	"github.com/RustLabx/rstoken/lib/logger"
	"github.com/RustLabx/rstoken/lib/msg/mb"
	"github.com/RustLabx/rstoken/lib/store/db"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "configuration file (json or yaml)")
	monitor := flag.Bool("m", false, "serve Prometheus metrics at http://localhost:9100/metrics")
	flag.Parse()

	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration")
	}

	logger.Init(conf.LogLevel)
	l := logger.Get()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dbConn, err := db.New(conf.DBType, conf.DBConn)
	if err != nil {
		l.Fatal().Err(err).Str("type", conf.DBType).Msg("cannot connect to database")
	}

	defer func() {
		l.Info().AnErr("err", db.Close(dbConn)).Msg("database closed")
	}()

	rt, chains, err := block.Init(ctx, conf.Bc)
	if err != nil {
		l.Fatal().Err(err).Msg("cannot load blockchains") //nolint:gocritic
	}
	defer block.End(rt, chains)

	if *monitor {
		go func() {
			h := http.NewServeMux()
			h.Handle("/metrics", promhttp.Handler())

			l.Info().Msg("serving metrics API")
			l.Error().Err(http.ListenAndServe(":9100", h)).Msg("metrics API") //nolint:gosec
		}()
	}

	broker, err := mb.New(conf.MbType, conf.MbConn)
	if err != nil {
		l.Fatal().Err(err).Str("type", conf.MbType).Msg("cannot connect to message broker") //nolint:gocritic
	}

	defer func() {
		l.Info().AnErr("err", broker.Close()).Msg("message broker closed")
	}()

	// explore every network with a block reader until killed
	<-explorer.New(dbConn, broker, chains).Explore(ctx)

	l.Info().Msg("explorer done")
}
