package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stepup-gateway/internal/audit"
	audithandler "stepup-gateway/internal/audit/handler"
	auditrepo "stepup-gateway/internal/audit/repository"
	"stepup-gateway/internal/config"
	"stepup-gateway/internal/db"
	healthhandler "stepup-gateway/internal/health/handler"
	"stepup-gateway/internal/policy/engine"
	"stepup-gateway/internal/provider"
	"stepup-gateway/internal/provider/httpclient"
	"stepup-gateway/internal/provider/local"
	"stepup-gateway/internal/recovery"
	recoveryrepo "stepup-gateway/internal/recovery/repository"
	"stepup-gateway/internal/security"
	"stepup-gateway/internal/server"
	"stepup-gateway/internal/server/middleware"
	"stepup-gateway/internal/session"
	sessiondomain "stepup-gateway/internal/session/domain"
	"stepup-gateway/internal/stepup"
	stepuphandler "stepup-gateway/internal/stepup/handler"
	"stepup-gateway/internal/telemetry"
	telemetryotel "stepup-gateway/internal/telemetry/otel"
	"stepup-gateway/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "stepup-gateway", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	var database *sql.DB
	if cfg.DatabaseURL != "" {
		database, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer database.Close()
	} else {
		log.Println("DATABASE_URL not set; audit logs and recovery codes disabled")
	}

	policySource := ""
	if cfg.PolicyPath != "" {
		b, err := os.ReadFile(cfg.PolicyPath)
		if err != nil {
			log.Fatalf("policy: read %s: %v", cfg.PolicyPath, err)
		}
		policySource = string(b)
	}
	evaluator, err := engine.NewOPAEvaluator(policySource)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.StepUpTTL())

	var providerClient provider.Client
	if cfg.LocalProvider {
		log.Println("using in-process TOTP provider (development only)")
		providerClient = local.New(cfg.TOTPIssuer)
	} else {
		if cfg.ProviderBaseURL == "" {
			log.Fatal("config: PROVIDER_BASE_URL must be set unless LOCAL_PROVIDER=true")
		}
		providerClient = httpclient.New(cfg.ProviderBaseURL, cfg.ProviderAPIKey)
	}

	var auditLogger audit.AuditLogger
	var auditHandler *audithandler.Handler
	var recoverySvc *recovery.Service
	if database != nil {
		repo := auditrepo.NewPostgresRepository(database)
		auditLogger = audit.NewLogger(repo, middleware.ClientIP)
		auditHandler = audithandler.NewHandler(repo)
		recoverySvc = recovery.NewService(recoveryrepo.NewPostgresRepository(database), security.NewHasher(cfg.BcryptCost))
	}

	var emitters telemetry.Fanout
	emitters = append(emitters, telemetryotel.NewEventEmitter(providers.LoggerProvider))
	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		emitters = append(emitters, kafkaProducer)
	}

	resolveTimeout := cfg.ResolveTimeoutDuration()
	totpIssuer := cfg.TOTPIssuer
	env := cfg.Env

	builder := func(ctx context.Context, s sessiondomain.Session) (*stepup.Gate, *stepup.Controller, error) {
		result, err := evaluator.EvaluateStepUp(ctx, engine.StepUpInput{Role: s.Role, Env: env})
		if err != nil {
			// Required=true already; log and continue closed.
			log.Printf("session %s: policy evaluation failed: %v", s.ID, err)
		}
		gate := stepup.NewGate(result.Required)
		controller := stepup.NewController(
			s.AdminID,
			stepup.NewResolver(providerClient, resolveTimeout),
			stepup.NewCoordinator(providerClient, totpIssuer),
			stepup.NewVerifier(providerClient),
			gate,
			func() { log.Printf("session %s: step-up verified for admin %s", s.ID, s.AdminID) },
		)
		return gate, controller, nil
	}
	registry := session.NewRegistry(builder)

	var emitter telemetry.EventEmitter = emitters
	stepUpHandler := stepuphandler.NewHandler(registry, tokens, recoverySvc, auditLogger, emitter)

	var pinger healthhandler.Pinger
	if database != nil {
		pinger = database
	}
	healthHandler := healthhandler.NewHandler(pinger, evaluator)

	router := server.NewRouter(server.Deps{
		Tokens:      tokens,
		Registry:    registry,
		StepUp:      stepUpHandler,
		Audit:       auditHandler,
		Health:      healthHandler,
		AuditLogger: auditLogger,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Let in-flight async telemetry drain before tearing down the exporters.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
