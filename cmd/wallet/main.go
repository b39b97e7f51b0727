// Package main: wallet service.
//
// The database keeps the transactions sent and the objects monitored, so it should be the same database used by the
// explorer service. With -x the explorer runs in the same process, sharing database and message broker; use the
// "local" broker type when no external broker is available.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/tarancss/hd"

	"github.com/RustLabx/rstoken/explorer"
	"github.com/RustLabx/rstoken/lib/block"
	"github.com/RustLabx/rstoken/lib/config"
	"github.com/RustLabx/rstoken/lib/keys"
	"github.com/RustLabx/rstoken/lib/logger"
	"github.com/RustLabx/rstoken/lib/msg"
	"github.com/RustLabx/rstoken/lib/msg/mb"
	"github.com/RustLabx/rstoken/lib/store"
	"github.com/RustLabx/rstoken/lib/store/db"
	"github.com/RustLabx/rstoken/wallet"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "configuration file (json or yaml)")
	monitor := flag.Bool("m", false, "serve Prometheus metrics at http://localhost:9100/metrics")
	explore := flag.Bool("x", false, "run the explorer service in the same process")
	flag.Parse()

	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration")
	}

	logger.Init(conf.LogLevel)
	l := logger.Get()

	l.Info().Str("db", conf.DBType).Str("mb", conf.MbType).Str("port", conf.Port).Int("chains", len(conf.Bc)).
		Msg("configuration loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// connect to database
	var dbConn store.DB

	if conf.DBConn != "" {
		if dbConn, err = db.New(conf.DBType, conf.DBConn); err != nil {
			l.Fatal().Err(err).Str("type", conf.DBType).Msg("cannot connect to database")
		}

		defer func() {
			l.Info().AnErr("err", db.Close(dbConn)).Msg("database closed")
		}()
	}

	// load all blockchains
	rt, chains, err := block.Init(ctx, conf.Bc)
	if err != nil {
		l.Fatal().Err(err).Msg("cannot load blockchains") //nolint:gocritic // nothing to close yet but the db
	}
	defer block.End(rt, chains)

	l.Info().Interface("chains", rt.SupportedChains()).Msg("blockchain adapters loaded")

	if *monitor {
		go func() {
			h := http.NewServeMux()
			h.Handle("/metrics", promhttp.Handler())

			l.Info().Msg("serving metrics API")
			l.Error().Err(http.ListenAndServe(":9100", h)).Msg("metrics API") //nolint:gosec // internal endpoint
		}()
	}

	// load message broker
	var broker msg.Broker

	if conf.MbType != "" {
		if broker, err = mb.New(conf.MbType, conf.MbConn); err != nil {
			l.Error().Err(err).Str("type", conf.MbType).Msg("no message broker, monitoring disabled")
		} else {
			defer func() {
				l.Info().AnErr("err", broker.Close()).Msg("message broker closed")
			}()
		}
	}

	// load HD wallet
	var hdw *hd.HdWallet

	if seed, errSeed := hex.DecodeString(conf.Seed); errSeed != nil {
		l.Error().Err(errSeed).Msg("bad HD wallet seed")
	} else if hdw, err = hd.Init(seed); err != nil {
		l.Error().Err(err).Msg("cannot load HD wallet")
	}

	w := wallet.New(rt, chains, keys.NewKeyring(), dbConn, broker, hdw)

	var explored <-chan struct{}

	if *explore && dbConn != nil && broker != nil {
		explored = explorer.New(dbConn, broker, chains).Explore(ctx)
	}

	if broker != nil {
		if err = w.ManageEvents(ctx); err != nil {
			l.Error().Err(err).Msg("cannot consume explorer events")
		}
	}

	go func() {
		<-ctx.Done()
		l.Info().Msg("program killed")
		w.Stop()
	}()

	// serve the RESTful API until stopped
	l.Info().Msg(w.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))

	if explored != nil {
		<-explored
	}
}
