package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	appcart "github.com/minimart/storefront/internal/application/cart"
	apporder "github.com/minimart/storefront/internal/application/order"
	apppayment "github.com/minimart/storefront/internal/application/payment"
	domcart "github.com/minimart/storefront/internal/domain/cart"
	domcatalog "github.com/minimart/storefront/internal/domain/catalog"
	domidentity "github.com/minimart/storefront/internal/domain/identity"
	domorder "github.com/minimart/storefront/internal/domain/order"
	dompayment "github.com/minimart/storefront/internal/domain/payment"
	catalogstore "github.com/minimart/storefront/internal/infrastructure/catalog"
	httptransport "github.com/minimart/storefront/internal/infrastructure/http"
	"github.com/minimart/storefront/internal/infrastructure/id"
	identitystore "github.com/minimart/storefront/internal/infrastructure/identity"
	"github.com/minimart/storefront/internal/infrastructure/memory"
	mongostore "github.com/minimart/storefront/internal/infrastructure/mongo"
	mysqlstore "github.com/minimart/storefront/internal/infrastructure/mysql"
	"github.com/minimart/storefront/internal/pkg/logging"
	"github.com/minimart/storefront/internal/pkg/metrics"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "storefront")
	env := getenvDefault("ENV", "dev")
	var logPaths []string
	if p := os.Getenv("LOG_FILE"); p != "" {
		logPaths = append(logPaths, p)
	}
	baseLogger := logging.MustNewLogger(serviceName, env, logPaths...)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	ctx := context.Background()
	m := metrics.New(prometheus.DefaultRegisterer)

	catalogReader := buildCatalog(ctx, baseLogger)
	orderRepo, paymentRepo := buildOrderStores(ctx, baseLogger)
	cartRepo := buildCartStore(ctx, baseLogger)

	idGenerator := id.NewUUIDGenerator()
	successRate := getenvFloat("PAYMENT_SUCCESS_RATE", apppayment.DefaultSuccessRate)

	cartService := appcart.NewService(cartRepo, catalogReader)
	orderService := apporder.NewService(orderRepo, cartRepo, catalogReader, idGenerator, m)
	paymentService := apppayment.NewService(orderRepo, paymentRepo, orderService, idGenerator, successRate, m)

	verifier := buildVerifier()
	handler := httptransport.NewHandler(cartService, orderService, paymentService, verifier)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    getenvDefault("HTTP_ADDR", ":8080"),
		Handler: mux,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.Float64("payment_success_rate", successRate),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error", zap.Error(err))
		}
	}()

	<-runCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		baseLogger.Info("http_server_stopped")
	}
}

// buildCatalog wires the Redis-backed catalog when REDIS_ADDR is set,
// otherwise an in-memory catalog seeded with demo products.
func buildCatalog(ctx context.Context, logger *zap.Logger) domcatalog.Reader {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis_connect_failed", zap.String("addr", addr), zap.Error(err))
		}
		logger.Info("catalog_store_ready", zap.String("backend", "redis"))
		return catalogstore.NewRedisReader(rdb)
	}

	mem := memory.NewCatalog()
	mem.Seed(
		domcatalog.Product{ID: "sku-espresso", Name: "Espresso Machine", Price: 24900, Stock: 25},
		domcatalog.Product{ID: "sku-grinder", Name: "Burr Grinder", Price: 9900, Stock: 40},
		domcatalog.Product{ID: "sku-kettle", Name: "Gooseneck Kettle", Price: 5900, Stock: 60},
	)
	logger.Info("catalog_store_ready", zap.String("backend", "memory"))
	return mem
}

func buildOrderStores(ctx context.Context, logger *zap.Logger) (domorder.Repository, dompayment.Repository) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		logger.Info("order_store_ready", zap.String("backend", "memory"))
		return memory.NewOrderRepository(), memory.NewPaymentRepository()
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		logger.Fatal("mysql_open_failed", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("mysql_connect_failed", zap.Error(err))
	}
	if err := mysqlstore.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("mysql_schema_failed", zap.Error(err))
	}
	logger.Info("order_store_ready", zap.String("backend", "mysql"))
	return mysqlstore.NewOrderRepository(db), mysqlstore.NewPaymentRepository(db)
}

func buildCartStore(ctx context.Context, logger *zap.Logger) domcart.Repository {
	uri := os.Getenv("MONGO_URL")
	if uri == "" {
		logger.Info("cart_store_ready", zap.String("backend", "memory"))
		return memory.NewCartRepository()
	}

	client, err := mongodriver.Connect(ctx, mongooptions.Client().ApplyURI(uri))
	if err != nil {
		logger.Fatal("mongo_connect_failed", zap.Error(err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		logger.Fatal("mongo_ping_failed", zap.Error(err))
	}

	repo := mongostore.NewCartRepository(client.Database(getenvDefault("MONGO_DB", "storefront")))
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("mongo_index_failed", zap.Error(err))
	}
	logger.Info("cart_store_ready", zap.String("backend", "mongo"))
	return repo
}

// buildVerifier reads AUTH_TOKENS ("token:user:role,..."); without it a
// pair of demo identities keeps local runs usable.
func buildVerifier() domidentity.Verifier {
	if raw := os.Getenv("AUTH_TOKENS"); raw != "" {
		return identitystore.NewStaticVerifier(identitystore.ParseTokens(raw))
	}
	return identitystore.NewStaticVerifier(map[string]domidentity.Identity{
		"dev-alice": {UserID: "alice", Role: domidentity.RoleCustomer},
		"dev-bob":   {UserID: "bob", Role: domidentity.RoleCustomer},
	})
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
