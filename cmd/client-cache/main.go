package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/always-cache/client-cache/cache"
	"github.com/always-cache/client-cache/core"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	originFlag         string
	storeFlag          string
	dbPathFlag         string
	insecureFlag       bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides config)")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&storeFlag, "store", "sqlite", "Store backend to use: sqlite, leveldb or memory")
	flag.StringVar(&dbPathFlag, "db", "cache.db", "Store db file or directory")
	flag.BoolVar(&insecureFlag, "insecure", false, "Serve https requests from entries cached over plain http")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config := Config{
		Port:   portFlag,
		Origin: originFlag,
		Store:  storeFlag,
		DBPath: dbPathFlag,
	}
	if configFilenameFlag != "" {
		fileConfig, err := getConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
		config = fileConfig
		if originFlag != "" {
			config.Origin = originFlag
		}
		if config.Port == 0 {
			config.Port = portFlag
		}
	}
	if insecureFlag {
		config.Insecure = true
	}
	if config.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}

	originURL, err := url.Parse(config.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}

	var store core.Store
	switch config.Store {
	case "sqlite":
		store = cache.NewSQLiteStore(config.DBPath)
	case "leveldb":
		ldb, err := cache.NewLevelDBStore(config.DBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not open leveldb store")
		}
		defer ldb.Close()
		store = ldb
	case "memory", "":
		store = core.NewMemStore()
	default:
		log.Fatal().Msgf("Unsupported store backend: %s", config.Store)
	}

	responseCache := core.CreateCache(core.Config{Store: store})
	var engineCache core.ResponseCache = responseCache
	if config.Insecure {
		engineCache = core.InsecureCache{Inner: responseCache}
	}
	client := &http.Client{
		Transport: &core.Transport{Cache: engineCache},
		// do not follow redirects; pass them to the client as-is
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	router := chi.NewRouter()
	router.Route("/.cache", func(r chi.Router) {
		r.Get("/counters", countersHandler(responseCache))
		r.Get("/keys", keysHandler(responseCache))
		r.Delete("/keys", purgeHandler(responseCache))
	})
	router.NotFound(proxyHandler(client, originURL))

	log.Info().Msgf("Proxying port %v to %s", config.Port, originURL)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", config.Port), router); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}

// proxyHandler forwards the request to the origin through the caching
// transport and copies the response downstream.
func proxyHandler(client *http.Client, origin *url.URL) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := origin.String() + r.URL.RequestURI()
		body := r.Body
		if r.ContentLength == 0 {
			body = nil
		}
		req, err := core.NewRequest(r.Method, uri, body)
		if err != nil {
			http.Error(w, "Could not create origin request", http.StatusInternalServerError)
			log.Error().Err(err).Str("uri", uri).Msg("Could not create request")
			return
		}
		copyHeader(req.Header, r.Header)
		req.Header.Del("Connection")

		res, err := client.Do(req)
		if err != nil {
			http.Error(w, "Error contacting origin", http.StatusBadGateway)
			log.Error().Err(err).Msg("Could not fetch response from origin")
			return
		}
		defer res.Body.Close()

		copyHeader(w.Header(), res.Header)
		w.WriteHeader(res.StatusCode)
		if _, err := io.Copy(w, res.Body); err != nil {
			log.Error().Err(err).Msg("Error writing to client")
		}
	}
}

func countersHandler(c *core.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(c.Counters())
	}
}

func keysHandler(c *core.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys := make([]string, 0)
		c.Keys(func(key string) {
			keys = append(keys, key)
		})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(keys)
	}
}

func purgeHandler(c *core.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.Query().Get("uri")
		if uri == "" {
			http.Error(w, "uri query parameter required", http.StatusBadRequest)
			return
		}
		c.Purge(uri)
		w.WriteHeader(http.StatusNoContent)
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// do not forward proxy bookkeeping headers upstream
		if k != "X-Forwarded-For" && k != "X-Forwarded-Proto" && k != "X-Forwarded-Host" {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}
