package app

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
	"github.com/shandysiswandi/watchsync/internal/pkg/config"
	"github.com/shandysiswandi/watchsync/internal/pkg/goroutine"
	"github.com/shandysiswandi/watchsync/internal/pkg/idempotency"
	"github.com/shandysiswandi/watchsync/internal/pkg/instrument"
	"github.com/shandysiswandi/watchsync/internal/pkg/messaging"
	"github.com/shandysiswandi/watchsync/internal/pkg/router"
	"github.com/shandysiswandi/watchsync/internal/pkg/slot"
	"github.com/shandysiswandi/watchsync/internal/pkg/uid"
	"github.com/shandysiswandi/watchsync/internal/pkg/validator"
)

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("app.tz"))

	a.config = cfg
}

func (a *App) initInstrument() {
	var roles []string
	for _, role := range []string{"primary", "companion"} {
		if a.config.GetBool("modules." + role + ".enabled") {
			roles = append(roles, role)
		}
	}

	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		Roles:            roles,
		LogLevel:         a.config.GetString("instrument.log_level"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	snow, err := uid.NewSnowflake(a.config.GetInt64("app.node_id"))
	if err != nil {
		slog.Error("failed to init uid number snowflake", "error", err)
		os.Exit(1)
	}
	a.uid = snow
}

// initCache connects redis when it is configured. Without it the idempotency
// tracker lives in memory, which is enough for a single primary process.
func (a *App) initCache() {
	url := strings.TrimSpace(a.config.GetString("redis.url"))
	if url == "" {
		if strings.TrimSpace(a.config.GetString("slot.driver")) == slot.DriverRedis {
			slog.Error("failed to init redis, slot driver redis needs redis.url")
			os.Exit(1)
		}
		a.idemp = idempotency.NewMemory(a.clock)
		return
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.New(a.cacheConn)
}

// googleOptions builds client options for Google Cloud drivers from the keys
// under prefix.
func (a *App) googleOptions(prefix string, scopes ...string) []option.ClientOption {
	opts := []option.ClientOption{}
	if a.config.GetBool(prefix + ".without_auth") {
		opts = append(opts, option.WithoutAuthentication())
	}

	credsJSON := a.config.GetBinary(prefix + ".credentials_json")
	if v := strings.TrimSpace(a.config.GetString(prefix + ".credentials_file")); v != "" {
		// #nosec G304 -- path is from trusted config file.
		b, err := os.ReadFile(v)
		if err != nil {
			slog.Error("failed to read google credentials file", "prefix", prefix, "error", err)
			os.Exit(1)
		}
		credsJSON = b
	}
	if len(credsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(a.ctx, credsJSON, scopes...)
		if err != nil {
			slog.Error("failed to parse google credentials", "prefix", prefix, "error", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	if v := strings.TrimSpace(a.config.GetString(prefix + ".endpoint")); v != "" {
		opts = append(opts, option.WithEndpoint(v))
	}
	if v := strings.TrimSpace(a.config.GetString(prefix + ".user_agent")); v != "" {
		opts = append(opts, option.WithUserAgent(v))
	}

	return opts
}

func (a *App) initMessaging() {
	driver := strings.TrimSpace(a.config.GetString("messaging.driver"))

	var pubsubOptions []option.ClientOption
	if driver == messaging.DriverGooglePubSub {
		pubsubOptions = a.googleOptions("messaging.pubsub", "https://www.googleapis.com/auth/pubsub")
	}

	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr:         a.config.GetString("messaging.nsq.producer_addr"),
			ConsumerNSQDAddrs:    a.config.GetArray("messaging.nsq.consumer_nsqd_addrs"),
			ConsumerLookupdAddrs: a.config.GetArray("messaging.nsq.consumer_lookupd_addrs"),
		},
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
		},
		NATS: messaging.NATSConfig{
			URL:  a.config.GetString("messaging.nats.url"),
			Name: a.config.GetString("instrument.service_name"),
			Options: []nats.Option{
				nats.MaxReconnects(-1),
				nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
			},
		},
		PubSub: messaging.PubSubConfig{
			ProjectID:     a.config.GetString("messaging.pubsub.project_id"),
			ClientOptions: pubsubOptions,
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "driver", driver, "error", err)
		os.Exit(1)
	}

	a.messaging = client
}

func (a *App) initSlot() {
	driver := strings.TrimSpace(a.config.GetString("slot.driver"))

	var gcsOptions []option.ClientOption
	if driver == slot.DriverGCS {
		gcsOptions = a.googleOptions("slot.gcs", gcs.ScopeReadWrite)
	}

	s, err := slot.NewFromDriver(a.ctx, driver, slot.FactoryOptions{
		RedisClient: a.cacheConn,
		Redis: slot.RedisOptions{
			NotifyPrefix: a.config.GetString("slot.redis.notify_prefix"),
			TTL:          a.config.GetMinute("slot.redis.ttl_minutes"),
		},
		S3: slot.S3Options{
			Region:       strings.TrimSpace(a.config.GetString("slot.s3.region")),
			Endpoint:     strings.TrimSpace(a.config.GetString("slot.s3.endpoint")),
			AccessKey:    strings.TrimSpace(a.config.GetString("slot.s3.access_key")),
			SecretKey:    strings.TrimSpace(a.config.GetString("slot.s3.secret_key")),
			SessionToken: strings.TrimSpace(a.config.GetString("slot.s3.session_token")),
			UsePathStyle: a.config.GetBool("slot.s3.use_path_style"),
			Bucket:       strings.TrimSpace(a.config.GetString("slot.s3.bucket")),
		},
		GCS: slot.GCSOptions{
			Bucket:        strings.TrimSpace(a.config.GetString("slot.gcs.bucket")),
			ClientOptions: gcsOptions,
		},
		MinIO: slot.MinIOOptions{
			Endpoint:     strings.TrimSpace(a.config.GetString("slot.minio.endpoint")),
			AccessKey:    strings.TrimSpace(a.config.GetString("slot.minio.access_key")),
			SecretKey:    strings.TrimSpace(a.config.GetString("slot.minio.secret_key")),
			SessionToken: strings.TrimSpace(a.config.GetString("slot.minio.session_token")),
			Region:       strings.TrimSpace(a.config.GetString("slot.minio.region")),
			UseSSL:       a.config.GetBool("slot.minio.use_ssl"),
			Bucket:       strings.TrimSpace(a.config.GetString("slot.minio.bucket")),
		},
	})
	if err != nil {
		slog.Error("failed to init slot", "driver", driver, "error", err)
		os.Exit(1)
	}

	a.slot = s
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}

	// streams end with the app context, otherwise Shutdown waits for them
	a.sseServer = &http.Server{
		Addr:              a.config.GetString("app.server.sse.address"),
		Handler:           routerWithCORS,
		ReadHeaderTimeout: a.config.GetSecond("app.server.sse.read_header_timeout_seconds"),
		BaseContext:       func(net.Listener) context.Context { return a.ctx },
	}
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Messaging",
			fn: func(context.Context) error {
				return a.messaging.Close()
			},
		},
		{
			name: "Slot",
			fn: func(context.Context) error {
				return a.slot.Close()
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				if a.cacheConn == nil {
					return nil
				}
				return a.cacheConn.Close()
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
