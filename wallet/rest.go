package wallet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const timeout = 15 * time.Second

// Router returns the handler of the RESTful API.
func (w *Wallet) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID)

	r.HandleFunc("/health", w.liveHandler).Methods(http.MethodPost)
	r.HandleFunc("/health", w.readyHandler).Methods(http.MethodGet)
	r.HandleFunc("/networks", w.networksHandler).Methods(http.MethodGet)

	b := r.PathPrefix("/block").Subrouter()
	b.HandleFunc("/height", w.heightHandler).Methods(http.MethodGet)
	b.HandleFunc("/latest", w.latestHandler).Methods(http.MethodGet)

	wa := r.PathPrefix("/wallet").Subrouter()
	wa.HandleFunc("/import", w.importHandler).Methods(http.MethodPost)
	wa.HandleFunc("/hd", w.hdAddrHandler).Methods(http.MethodGet)
	wa.HandleFunc("/balance/{address}", w.balanceHandler).Methods(http.MethodGet)
	wa.HandleFunc("/transaction/{tx_hash}", w.txHandler).Methods(http.MethodGet)
	wa.HandleFunc("/send", w.sendHandler).Methods(http.MethodPost)
	wa.HandleFunc("/listen/{address}", w.listenHandler).Methods(http.MethodPost, http.MethodDelete)
	wa.HandleFunc("/listen", w.listenedHandler).Methods(http.MethodGet)

	e := r.PathPrefix("/erc20").Subrouter()
	e.HandleFunc("/balance", w.tokenBalanceHandler).Methods(http.MethodGet)
	e.HandleFunc("/send", w.tokenSendHandler).Methods(http.MethodPost)
	e.HandleFunc("/info/{contract}", w.tokenInfoHandler).Methods(http.MethodGet)
	e.HandleFunc("/listen/{contract}", w.contractListenHandler).Methods(http.MethodGet, http.MethodDelete)
	e.HandleFunc("/listen", w.contractsHandler).Methods(http.MethodGet)

	r.NotFoundHandler = requestID(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		reply(rw, req, 0, nil, fmt.Errorf("%w: %s", ErrNoEndpoint, req.URL.Path))
	}))
	r.MethodNotAllowedHandler = requestID(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		writeJSON(rw, http.StatusMethodNotAllowed,
			Response{Status: http.StatusMethodNotAllowed, Message: "method not allowed"})
	}))

	return r
}

// requestID tags every request with an id, replied in the X-Request-Id header, and a logger carrying it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		rw.Header().Set("X-Request-Id", id)

		l := log.With().Str("req", id).Str("remote", r.RemoteAddr).Str("method", r.Method).
			Str("uri", r.RequestURI).Logger()

		next.ServeHTTP(rw, r.WithContext(l.WithContext(r.Context())))
	})
}

// Init sets up and starts the http/https server to service the RESTful API for a wallet service. If sslPort, sslCert
// and sslKey are informed, it will also start an https (TLS) server on the specified endpoint. It returns when Stop
// is called and the servers have been shut down.
func (w *Wallet) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var (
		err, errTLS error
		s, ss       *http.Server
	)

	h := w.Router()
	done := make(chan struct{}, 2) //nolint:gomnd // one per server

	if port != "" {
		s = &http.Server{
			Handler:      h,
			Addr:         endpoint + ":" + port,
			WriteTimeout: timeout,
			ReadTimeout:  timeout,
		}

		go func() {
			err = s.ListenAndServe()
			done <- struct{}{}
		}()

		log.Info().Str("addr", s.Addr).Msg("listening to API http requests")
	}

	if sslPort != "" && sslCert != "" && sslKey != "" {
		ss = &http.Server{
			Handler:      h,
			Addr:         endpoint + ":" + sslPort,
			WriteTimeout: timeout,
			ReadTimeout:  timeout,
		}

		go func() {
			errTLS = ss.ListenAndServeTLS(sslCert, sslKey)
			done <- struct{}{}
		}()

		log.Info().Str("addr", ss.Addr).Msg("listening to API https requests")
	}

	<-w.sc

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range []*http.Server{s, ss} {
		if srv == nil {
			continue
		}

		if errS := srv.Shutdown(ctx); errS != nil {
			log.Error().Err(errS).Str("addr", srv.Addr).Msg("http server shutdown")
		}

		<-done
	}

	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	if errors.Is(errTLS, http.ErrServerClosed) {
		errTLS = nil
	}

	return fmt.Sprintf("shutdown http server:%v, https server:%v", err, errTLS)
}
