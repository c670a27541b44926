package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruletree/engine/internal/api"
	"github.com/ruletree/engine/internal/config"
	grpccodec "github.com/ruletree/engine/internal/grpc/codec"
	grpcmiddleware "github.com/ruletree/engine/internal/grpc/middleware"
	grpcservices "github.com/ruletree/engine/internal/grpc/services"
	"github.com/ruletree/engine/internal/middleware"
	"github.com/ruletree/engine/internal/observability"
	"github.com/ruletree/engine/internal/services"
	"github.com/ruletree/engine/internal/source"
	"github.com/ruletree/engine/internal/storage"
	"github.com/ruletree/engine/pkg/fsm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

var (
	version = "dev"
	commit  = "unknown"
	tracer  oteltrace.Tracer
)

func main() {
	cfg, err := config.Load(os.Getenv("RULETREE_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownTracing := observability.InitOpenTelemetryOrNoop(context.Background(), "ruletree-engine", version)
	defer shutdownTracing(context.Background())
	tracer = otel.Tracer("ruletree-engine")

	if err := observability.InitMetrics(); err != nil {
		log.Printf("warning: metrics init failed: %v", err)
	}

	// Evaluation Service: Grove registration path (disk + in-memory index
	// under FSM-gated atomicity) plus a Transaction-State Gate per tree.
	// The catalog is left nil here (attribute names then resolve as ids in
	// group "default"); sources is an empty internal/source.New registry. A
	// deployment with a fixed Attribute Catalog wires pkg/catalog.New at
	// startup instead.
	dataDir := getEnv("RULETREE_DATA_DIR", "./data")
	index := services.NewMemoryGroveIndex()
	diskStore, err := storage.NewDiskGroveStore(dataDir)
	if err != nil {
		log.Fatalf("failed to open grove disk store: %v", err)
	}
	grove := fsm.NewSafeGroveService(index, diskStore)
	sources := source.New()
	evalSvc := services.NewEvaluationService(grove, index, nil, sources)

	treeHandlers := api.NewTreeHandlers(evalSvc, tracer)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", api.HealthCheck)
	mux.HandleFunc("POST /v1/trees", treeHandlers.RegisterTree)
	mux.HandleFunc("POST /v1/trees/import", treeHandlers.ImportTrees)
	mux.HandleFunc("GET /v1/trees", treeHandlers.ListTrees)
	mux.HandleFunc("GET /v1/trees/{id}", treeHandlers.GetTree)
	mux.HandleFunc("PUT /v1/trees/{id}", treeHandlers.UpdateTree)
	mux.HandleFunc("DELETE /v1/trees/{id}", treeHandlers.RemoveTree)
	mux.HandleFunc("POST /v1/trees/{id}/validate", treeHandlers.ValidateTree)
	mux.HandleFunc("POST /v1/gates/{id}/confirm", treeHandlers.ConfirmGate)
	mux.HandleFunc("POST /v1/gates/{id}/revoke", treeHandlers.RevokeGate)
	mux.HandleFunc("POST /v1/gates/{id}/owners", treeHandlers.AddGateOwner)

	handler := withLogging(withCORS(middleware.BodyLimitMiddleware(int64(cfg.HTTP.MaxBodyBytes))(mux)))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.HTTP.IdleTimeout) * time.Second,
	}

	// gRPC server: protobuf-free, JSON-coded (internal/grpc/codec) so
	// hand-rolled request/response structs can register directly without a
	// .proto/protoc step.
	encoding.RegisterCodec(grpccodec.JSON{})
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcmiddleware.UnaryServerLoggingInterceptor()),
		grpc.MaxRecvMsgSize(cfg.GRPC.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.GRPC.MaxSendMsgSize),
	)
	grpcservices.Register(grpcServer, grpcservices.NewEvaluationServer(evalSvc))

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
	if err != nil {
		log.Fatalf("failed to listen on gRPC port %d: %v", cfg.GRPC.Port, err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("ruletree-engine %s (%s) HTTP listening on :%d", version, commit, cfg.HTTP.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	go func() {
		log.Printf("ruletree-engine gRPC listening on :%d", cfg.GRPC.Port)
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	<-stop
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	grpcServer.GracefulStop()

	log.Println("stopped gracefully")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		if tracer != nil {
			var span oteltrace.Span
			ctx, span = tracer.Start(ctx, r.Method+" "+r.URL.Path,
				oteltrace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.url", r.URL.Path),
				),
			)
			defer span.End()
			r = r.WithContext(ctx)
		}

		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if tracer != nil {
			span := oteltrace.SpanFromContext(ctx)
			span.SetAttributes(attribute.Int("http.status_code", wrapped.statusCode))
		}

		log.Printf("%s %s %d %s", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
