package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/transcribeservice"
	"github.com/gorilla/mux"
	"github.com/rainycape/memcache"
	"github.com/rs/cors"
	"github.com/samuel/go-metrics/metrics"
	"github.com/samuel/go-metrics/reporter"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sprucehealth/go-proxy-protocol/proxyproto"

	"github.com/voicescribe/backend/boot"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/auth"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/dal"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/handlers"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/jobcache"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/summary"
	"github.com/voicescribe/backend/cmd/svc/scribe/internal/transcription"
	"github.com/voicescribe/backend/libs/awsutil"
	"github.com/voicescribe/backend/libs/clock"
	"github.com/voicescribe/backend/libs/golog"
	"github.com/voicescribe/backend/libs/httputil"
	"github.com/voicescribe/backend/libs/sig"
	"github.com/voicescribe/backend/libs/storage"
)

var config struct {
	httpAddr      string
	proxyProtocol bool
	env           string
	debug         bool

	// Auth
	authSecrets  string
	authTokenTTL time.Duration
	mintOwnerID  string

	// Artifact storage
	s3Bucket      string
	maxUploadSize int

	// Transcription
	transcribeLanguage string
	pollInterval       time.Duration
	pollTimeout        time.Duration

	// Summarization
	openaiKey   string
	openaiModel string

	// Memcached
	mcHosts         string
	mcCacheDuration time.Duration

	// AWS
	awsAccessKey        string
	awsSecretKey        string
	awsToken            string
	awsRegion           string
	awsDynamoDBEndpoint string

	// Metrics
	metricsSource   string
	libratoUsername string
	libratoToken    string

	// CORS
	corsAllowAll bool
}

func init() {
	flag.StringVar(&config.httpAddr, "http", "0.0.0.0:8000", "listen for http on `host:port`")
	flag.BoolVar(&config.proxyProtocol, "proxyproto", false, "enable proxy protocol on the listener")
	flag.StringVar(&config.env, "env", "undefined", "`Environment`")
	flag.BoolVar(&config.debug, "debug", false, "Enable debug logging")

	// Auth
	flag.StringVar(&config.authSecrets, "auth.secrets", "", "Comma separated HMAC `secrets` for token signing, newest first")
	flag.DurationVar(&config.authTokenTTL, "auth.token.ttl", 30*24*time.Hour, "`Lifetime` of issued bearer tokens")
	flag.StringVar(&config.mintOwnerID, "auth.mint", "", "Print a bearer token for the given `owner` ID and exit")

	// Artifact storage
	flag.StringVar(&config.s3Bucket, "s3.bucket", "", "S3 `bucket` for uploaded artifacts and transcripts")
	flag.IntVar(&config.maxUploadSize, "upload.max.size", 0, "Maximum upload size in `bytes` (0 for the default)")

	// Transcription
	flag.StringVar(&config.transcribeLanguage, "transcribe.language", "en-US", "`Language` code for transcription jobs")
	flag.DurationVar(&config.pollInterval, "transcribe.poll.interval", 5*time.Second, "`Interval` between job status checks")
	flag.DurationVar(&config.pollTimeout, "transcribe.poll.timeout", 30*time.Minute, "How `long` to wait for a job before giving up")

	// Summarization
	flag.StringVar(&config.openaiKey, "openai.key", "", "OpenAI API `key`")
	flag.StringVar(&config.openaiModel, "openai.model", openai.GPT4o, "OpenAI `model` for summarization")

	// Memcached
	flag.StringVar(&config.mcHosts, "mc.hosts", "", "Comma separated list of memcached `hosts`")
	flag.DurationVar(&config.mcCacheDuration, "mc.cache.duration", 7*24*time.Hour, "Cache `expiration` for record metadata")

	// AWS
	flag.StringVar(&config.awsAccessKey, "aws.access.key", "", "AWS Credentials Access Key")
	flag.StringVar(&config.awsSecretKey, "aws.secret.key", "", "AWS Credentials Secret Key")
	flag.StringVar(&config.awsToken, "aws.token", "", "AWS Credentials Token")
	flag.StringVar(&config.awsRegion, "aws.region", "us-east-1", "AWS `region`")
	flag.StringVar(&config.awsDynamoDBEndpoint, "aws.dynamodb.endpoint", "", "AWS DynamoDB API `endpoint` override")

	// Metrics
	flag.StringVar(&config.metricsSource, "metrics.source", "", "`Source` for metrics (e.g. hostname)")
	flag.StringVar(&config.libratoUsername, "librato.username", "", "Librato metrics `username`")
	flag.StringVar(&config.libratoToken, "librato.token", "", "Librato metrics auth `token`")

	// CORS
	flag.BoolVar(&config.corsAllowAll, "cors.allow.all", true, "Enable the * patterns on CORS")
}

func main() {
	boot.ParseFlags("SCRIBE_")
	if config.debug {
		golog.SetLevel(golog.DEBUG)
	}

	authenticator := setupAuthenticator()
	if config.mintOwnerID != "" {
		token, err := authenticator.IssueToken(config.mintOwnerID)
		if err != nil {
			golog.Fatalf("Failed to mint token: %s", err)
		}
		fmt.Println(token)
		return
	}

	if config.s3Bucket == "" {
		golog.Fatalf("-s3.bucket is required")
	}
	if config.openaiKey == "" {
		golog.Fatalf("-openai.key is required")
	}

	metricsRegistry := metrics.NewRegistry()
	handler := setupRouter(authenticator, metricsRegistry)

	if config.metricsSource == "" {
		hostname, err := os.Hostname()
		if err == nil {
			config.metricsSource = fmt.Sprintf("%s-%s-%s", config.env, "scribe", hostname)
		} else {
			config.metricsSource = "scribe"
			golog.Warningf("Unable to get local hostname: %s", err)
		}
	}
	metricsRegistry.Add("runtime", metrics.RuntimeMetrics)
	if config.libratoUsername != "" && config.libratoToken != "" {
		statsReporter := reporter.NewLibratoReporter(
			metricsRegistry, time.Minute, true, config.libratoUsername,
			config.libratoToken, config.metricsSource)
		statsReporter.Start()
		defer statsReporter.Stop()
	}

	serve(handler)
}

func setupAuthenticator() *auth.TokenAuthenticator {
	if config.authSecrets == "" {
		golog.Fatalf("-auth.secrets is required")
	}
	var keys [][]byte
	for _, s := range strings.Split(config.authSecrets, ",") {
		keys = append(keys, []byte(strings.TrimSpace(s)))
	}
	signer, err := sig.NewSigner(keys, nil)
	if err != nil {
		golog.Fatalf("Failed to create token signer: %s", err)
	}
	return auth.NewTokenAuthenticator(signer, clock.New(), config.authTokenTTL)
}

func setupRouter(authenticator *auth.TokenAuthenticator, metricsRegistry metrics.Registry) http.Handler {
	ctx := context.Background()

	awsSession, err := session.NewSession(awsutil.Config(
		config.awsRegion, config.awsAccessKey, config.awsSecretKey, config.awsToken))
	if err != nil {
		golog.Fatalf("Failed to create AWS session: %s", err)
	}

	store := storage.NewS3(awsSession, config.s3Bucket, "")

	var dynamoConfig []*aws.Config
	if config.awsDynamoDBEndpoint != "" {
		golog.Infof("AWS DynamoDB endpoint configured as %s", config.awsDynamoDBEndpoint)
		dynamoConfig = append(dynamoConfig, &aws.Config{Endpoint: &config.awsDynamoDBEndpoint})
	}
	var d dal.DAL
	d, err = dal.NewDynamoDB(ctx, dynamodb.New(awsSession, dynamoConfig...), config.env)
	if err != nil {
		golog.Fatalf("Failed to init DynamoDB DAL: %s", err)
	}
	if config.mcHosts != "" {
		var hosts []string
		for _, h := range strings.Split(config.mcHosts, ",") {
			hosts = append(hosts, strings.TrimSpace(h))
		}
		memcacheCli, err := memcache.New(hosts...)
		if err != nil {
			golog.Fatalf("Failed to connect to memcached: %s", err)
		}
		d = dal.NewCache(memcacheCli, d, config.mcCacheDuration, metricsRegistry.Scope("dal/cache"))
	}

	provider := transcription.NewAWS(
		transcribeservice.New(awsSession), store, config.s3Bucket, "", config.transcribeLanguage)
	summarizer := summary.New(openai.NewClient(config.openaiKey), config.openaiModel)

	cache := jobcache.New(&jobcache.Config{
		DAL:             d,
		Store:           store,
		Provider:        provider,
		Summarizer:      summarizer,
		Clock:           clock.New(),
		MaxArtifactSize: config.maxUploadSize,
		PollInterval:    config.pollInterval,
		PollTimeout:     config.pollTimeout,
		MetricsRegistry: metricsRegistry.Scope("jobcache"),
	})

	router := mux.NewRouter().StrictSlash(true)
	router.Handle("/transcribe", auth.Middleware(authenticator, handlers.NewTranscribe(cache)))
	router.Handle("/health", handlers.NewHealth())

	h := httputil.LoggingHandler(router, requestLogger)
	h = httputil.MetricsHandler(h, metricsRegistry.Scope("scribeapi"))
	h = httputil.RequestIDHandler(h)
	if config.corsAllowAll {
		h = cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{httputil.Delete, httputil.Get, httputil.Options, httputil.Post},
			AllowCredentials: true,
			AllowedHeaders:   []string{"*"},
		}).Handler(h)
	}
	return h
}

func requestLogger(ev *httputil.RequestEvent) {
	log := golog.Context(
		"Method", ev.Request.Method,
		"URL", ev.URL.String(),
		"UserAgent", ev.Request.UserAgent(),
		"RequestID", httputil.RequestID(ev.Request.Context()),
		"RemoteAddr", ev.RemoteAddr,
		"StatusCode", ev.StatusCode,
		"ResponseTime", ev.ResponseTime.String(),
	)
	if ev.Panic != nil {
		log.Criticalf("http: panic: %v\n%s", ev.Panic, ev.StackTrace)
	} else {
		log.Infof("scribe-apirequest")
	}
}

func serve(handler http.Handler) {
	listener, err := net.Listen("tcp", config.httpAddr)
	if err != nil {
		golog.Fatalf(err.Error())
	}
	if config.proxyProtocol {
		listener = &proxyproto.Listener{Listener: listener}
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		golog.Infof("Listening on %s", config.httpAddr)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			golog.Fatalf(err.Error())
		}
	}()
	boot.WaitForTermination()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		golog.Errorf("Failed to shut down cleanly: %s", err)
	}
}
