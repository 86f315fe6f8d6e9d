// Command jshunt browses the product catalogue in a terminal, or exports it
// as JSON lines with -export.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/jshunt-client/internal/config"
	"github.com/Sternrassler/jshunt-client/internal/navigation"
	"github.com/Sternrassler/jshunt-client/internal/view"
	"github.com/Sternrassler/jshunt-client/pkg/client"
	"github.com/Sternrassler/jshunt-client/pkg/logging"
	"github.com/Sternrassler/jshunt-client/pkg/metrics"
	"github.com/Sternrassler/jshunt-client/pkg/pagination"
	"github.com/Sternrassler/jshunt-client/pkg/products"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `commands:
  j, down      scroll down
  k, up        scroll up
  open N       open item N
  retry        reload the page that failed
  h, help      show this help
  q, quit      exit
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("jshunt failed")
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("jshunt", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML config (defaults to CONFIG_PATH, then ./local.yaml, then env)")
	exportPath := fs.String("export", "", "write every item as JSON lines to this file (- for stdout) and exit")
	headless := fs.Bool("headless", false, "log selected items instead of opening a browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	apiCfg := client.DefaultConfig(cfg.API.BaseURL, cfg.API.UserAgent)
	apiCfg.Redis = rdb
	apiCfg.Timeout = cfg.API.Timeout

	api, err := client.New(apiCfg)
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}
	defer api.Close()

	fetcher := products.NewFetcher(api)

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           newRouter(rdb),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", cfg.Metrics.Addr).Msg("Serving /health and /metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if *exportPath != "" {
		return exportToPath(ctx, fetcher, cfg.Export, *exportPath, logger)
	}

	var nav navigation.Navigator = navigation.NewBrowserNavigator()
	if *headless {
		nav = navigation.LogNavigator{Logger: logging.NewLogger("navigation")}
	}

	v := view.New(fetcher, nav, view.Config{Rows: cfg.View.Rows, Threshold: cfg.View.Threshold}, os.Stdout)
	v.Mount(ctx)
	defer func() {
		v.Close()
		v.Wait()
	}()

	fmt.Fprint(os.Stdout, usage)
	return commandLoop(ctx, v, os.Stdin, os.Stdout)
}

func newRouter(rdb *redis.Client) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler(rdb)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// healthHandler answers 503 when the configured Redis is unreachable.
func healthHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

func exportToPath(ctx context.Context, fetcher pagination.PageFetcher, cfg config.ExportConfig, path string, logger zerolog.Logger) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		w = f
	}

	n, err := export(ctx, fetcher, cfg, w)
	logger.Info().Int("items", n).Str("path", path).Msg("Export finished")
	return err
}

// export writes every item as one JSON object per line. Items of a partial
// fetch are written before the error is returned.
func export(ctx context.Context, fetcher pagination.PageFetcher, cfg config.ExportConfig, w io.Writer) (int, error) {
	bf := pagination.NewBatchFetcher(fetcher, pagination.BatchConfig{
		MaxConcurrency: cfg.Concurrency,
		PageTimeout:    cfg.PageTimeout,
	})

	res, fetchErr := bf.FetchAll(ctx)

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	written := 0
	for _, item := range res.Items {
		if err := enc.Encode(item); err != nil {
			return written, fmt.Errorf("write item %s: %w", item.ID, err)
		}
		written++
	}
	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("flush export: %w", err)
	}

	if fetchErr != nil {
		return written, fmt.Errorf("export: %w", fetchErr)
	}
	return written, nil
}

type command int

const (
	cmdNone command = iota
	cmdDown
	cmdUp
	cmdOpen
	cmdRetry
	cmdHelp
	cmdQuit
)

// parseCommand parses one input line. open takes a 1-based item number.
func parseCommand(line string) (command, int, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return cmdNone, 0, nil
	}

	switch strings.ToLower(fields[0]) {
	case "j", "down":
		return cmdDown, 0, nil
	case "k", "up":
		return cmdUp, 0, nil
	case "retry", "r":
		return cmdRetry, 0, nil
	case "h", "help", "?":
		return cmdHelp, 0, nil
	case "q", "quit", "exit":
		return cmdQuit, 0, nil
	case "open", "o":
		if len(fields) != 2 {
			return cmdNone, 0, fmt.Errorf("usage: open N")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return cmdNone, 0, fmt.Errorf("invalid item number %q", fields[1])
		}
		return cmdOpen, n, nil
	default:
		return cmdNone, 0, fmt.Errorf("unknown command %q", fields[0])
	}
}

// commandLoop reads commands from in until quit, EOF or ctx is done.
func commandLoop(ctx context.Context, v *view.ListView, in io.Reader, out io.Writer) error {
	scanCtx, stopScan := context.WithCancel(ctx)
	defer stopScan()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-scanCtx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = l
		}

		cmd, n, err := parseCommand(line)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}

		switch cmd {
		case cmdDown:
			err = v.ScrollDown(ctx)
		case cmdUp:
			err = v.ScrollUp(ctx)
		case cmdRetry:
			err = v.Retry(ctx)
		case cmdOpen:
			err = v.Select(ctx, n-1)
		case cmdHelp:
			fmt.Fprint(out, usage)
		case cmdQuit:
			return nil
		}
		if err != nil {
			fmt.Fprintln(out, err)
		}
	}
}
