package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jessewayne86/junk-dispatch/internal/analytics"
	"github.com/jessewayne86/junk-dispatch/internal/api"
	"github.com/jessewayne86/junk-dispatch/internal/config"
	"github.com/jessewayne86/junk-dispatch/internal/correlate"
	"github.com/jessewayne86/junk-dispatch/internal/intake"
	"github.com/jessewayne86/junk-dispatch/internal/metrics"
	"github.com/jessewayne86/junk-dispatch/internal/notify"
	"github.com/jessewayne86/junk-dispatch/internal/sheet"
	"github.com/jessewayne86/junk-dispatch/internal/smsrelay"
	"github.com/jessewayne86/junk-dispatch/internal/transport/channel"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	// Optional .env for local development; deployed instances use real env vars.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`junk-dispatch - intake webhook relay

Usage:
  junk-dispatch <command>

Commands:
  serve      Start the relay server
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  SHEET_WEBHOOK_URL           Spreadsheet upsert webhook URL (optional; skip mode when unset)
  PUBLIC_BASE_URL             Base URL for generated photo links (optional)
  VAPI_SMS_URL                Voice platform SMS forwarding endpoint (optional)

  TWILIO_ACCOUNT_SID          Twilio account SID (optional, enables owner SMS)
  TWILIO_AUTH_TOKEN           Twilio auth token
  TWILIO_FROM_NUMBER          Twilio sender number
  OWNER_PHONE                 Owner notification phone number

  RESEND_API_KEY              Resend API key (optional, enables owner email)
  EMAIL_FROM                  Email sender address
  EMAIL_TO                    Email recipient address

  HTTP_ADDR                   HTTP server address (default: ":8080", PORT also honored)
  HTTP_SHUTDOWN_TIMEOUT       Graceful HTTP shutdown timeout (default: "10s")
  OUTBOUND_TIMEOUT            Timeout for outbound HTTP calls (default: "10s")

  CORRELATION_TTL             Call-to-job correlation entry TTL (default: "24h")
  CORRELATION_SWEEP_INTERVAL  How often expired entries are evicted (default: "10m")

  NOTIFY_BUFFER_SIZE          Owner notification buffer size (default: "100")
  NOTIFY_DRAIN_TIMEOUT        Notification drain timeout on shutdown (default: "30s")

  METRICS_ENABLED             Enable Prometheus metrics (default: "false")
  METRICS_PATH                Metrics endpoint path (default: "/metrics")
  METRICS_PORT                Metrics server port (default: "9090")

  REDIS_ADDR                  Redis address for intake analytics (optional)`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(cfg)

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("junk-dispatch: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		// Start metrics HTTP server on separate port
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("junk-dispatch: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("junk-dispatch: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("junk-dispatch: METRICS_ENABLED not set; metrics disabled")
	}

	// Correlation table with TTL eviction
	table := correlate.NewTable(cfg.CorrelationTTL)
	if metricsSink != nil {
		table = table.WithMetrics(metricsSink)
	}

	normalizer := intake.New()
	relay := sheet.New(cfg.SheetWebhookURL, cfg.OutboundTimeout)
	if cfg.SheetWebhookURL == "" {
		log.Println("junk-dispatch: SHEET_WEBHOOK_URL not set; upserts will be skipped")
	}

	// Notification bus and dispatcher
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewEventBus(cfg.NotifyBufferSize, busOpts...)

	var smsSender notify.SMSSender
	if cfg.SMSEnabled() {
		smsSender = notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.OutboundTimeout)
		log.Printf("junk-dispatch: owner SMS enabled (to=%s)", cfg.OwnerPhone)
	} else {
		log.Println("junk-dispatch: Twilio not configured; owner SMS disabled")
	}

	var emailSender notify.EmailSender
	if cfg.EmailEnabled() {
		emailSender = notify.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.OutboundTimeout)
		log.Printf("junk-dispatch: owner email enabled (to=%s)", cfg.EmailTo)
	} else {
		log.Println("junk-dispatch: Resend not configured; owner email disabled")
	}

	disp := notify.New(smsSender, cfg.OwnerPhone, emailSender, cfg.EmailTo).
		WithDrainTimeout(cfg.NotifyDrainTimeout)
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}

	// Build the webhook handler
	handler := api.NewHandler(table, normalizer, relay).
		WithNotifier(bus).
		WithPublicBaseURL(cfg.PublicBaseURL)
	if metricsSink != nil {
		handler = handler.WithMetrics(metricsSink)
	}

	if cfg.VapiSMSURL != "" {
		handler = handler.WithForwarder(smsrelay.New(cfg.VapiSMSURL, cfg.OutboundTimeout))
		log.Printf("junk-dispatch: SMS forwarding enabled")
	} else {
		log.Println("junk-dispatch: VAPI_SMS_URL not set; SMS forwarding disabled")
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		handler = handler.WithAnalytics(analytics.NewRedisSink(redisClient))
		log.Printf("junk-dispatch: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("junk-dispatch: REDIS_ADDR not set; analytics disabled")
	}

	// Start HTTP server
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	go func() {
		log.Printf("junk-dispatch: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("junk-dispatch: http server error: %v", err)
		}
	}()

	// Use separate contexts for the janitor and dispatcher to enable ordered shutdown.
	janitorCtx, cancelJanitor := context.WithCancel(context.Background())
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())

	var janitorWg sync.WaitGroup
	var dispatcherWg sync.WaitGroup

	janitorWg.Add(1)
	go func() {
		defer janitorWg.Done()
		table.Run(janitorCtx, cfg.CorrelationSweepInterval)
	}()

	dispatcherWg.Add(1)
	go func() {
		defer dispatcherWg.Done()
		disp.Run(dispatcherCtx, bus.Channel())
	}()

	log.Printf("junk-dispatch: started (http=%s)", cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("junk-dispatch: received signal %v, shutting down", received)

	// Phase 1: Stop HTTP server (no new events enter the system)
	log.Println("junk-dispatch: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("junk-dispatch: http server shutdown error: %v", err)
	}
	log.Println("junk-dispatch: http server stopped")

	// Phase 2: Stop the correlation janitor
	cancelJanitor()
	janitorWg.Wait()

	// Phase 3: Stop the notify dispatcher (will drain buffered events before returning)
	log.Println("junk-dispatch: stopping notify dispatcher (draining events)...")
	cancelDispatcher()
	dispatcherWg.Wait()
	log.Println("junk-dispatch: notify dispatcher stopped")

	// Phase 4: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("junk-dispatch: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("junk-dispatch: metrics server shutdown error: %v", err)
		}
		log.Println("junk-dispatch: metrics server stopped")
	}

	log.Println("junk-dispatch: stopped")
	return exitSuccess
}

// logConfigWarnings flags configurations that are valid but probably not
// what the operator intended.
func logConfigWarnings(cfg config.Config) {
	if cfg.SheetWebhookURL == "" {
		log.Println("junk-dispatch: WARNING - no sheet sink configured; intake records will be dropped after logging")
	}
	if !cfg.SMSEnabled() && !cfg.EmailEnabled() {
		log.Println("junk-dispatch: WARNING - no notification channel configured; the owner will not be alerted to new intakes")
	}
	if cfg.CorrelationTTL > 0 && cfg.CorrelationSweepInterval > cfg.CorrelationTTL {
		log.Println("junk-dispatch: WARNING - CORRELATION_SWEEP_INTERVAL exceeds CORRELATION_TTL; expired entries will linger between sweeps")
	}
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("junk-dispatch version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
