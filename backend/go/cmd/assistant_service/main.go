package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/agent/subagents"
	"AIAssistant/backend/go/internal/assistant_service/api"
	"AIAssistant/backend/go/internal/assistant_service/service"
	"AIAssistant/backend/go/internal/cache"
	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/internal/database/kafka"
	"AIAssistant/backend/go/internal/database/minio"
	"AIAssistant/backend/go/internal/database/mongo"
	"AIAssistant/backend/go/internal/database/mysql"
	"AIAssistant/backend/go/internal/database/redis"
	"AIAssistant/backend/go/internal/dataquery"
	"AIAssistant/backend/go/internal/discovery/etcd"
	"AIAssistant/backend/go/internal/handler"
	"AIAssistant/backend/go/internal/llm"
	"AIAssistant/backend/go/internal/orchestrator"
	"AIAssistant/backend/go/internal/store"
	"AIAssistant/backend/go/pkg/http"
	"AIAssistant/backend/go/pkg/logger"
	"AIAssistant/backend/go/pkg/textsplit"
	"AIAssistant/backend/go/pkg/tracing"
)

func configPath() string {
	if p := os.Getenv("ASSISTANT_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 2. 初始化 Logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("assistant_service", "", "")
	appLogger.Info("Logger initialized for Assistant Service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 链路追踪
	if err := tracing.Init(cfg.Tracing, cfg.App.Version); err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to init tracing: %v", err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(sctx)
	}()

	health := map[string]api.HealthCheck{}

	// 4. 缓存：配置了 Redis 时使用 Redis，否则使用进程内缓存
	var turnCache cache.Cache
	if cfg.Databases.Redis.Address != "" {
		rdb, err := redis.GetClient(&cfg.Databases.Redis, appLogger)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to connect redis: %v", err))
		}
		defer redis.Close()
		turnCache = cache.NewRedisCache(rdb, redis.KeyPrefix(&cfg.Databases.Redis))
		health["redis"] = redis.HealthCheck
	} else {
		mem, err := cache.NewMemoryCache(1024, 64<<20)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to create memory cache: %v", err))
		}
		turnCache = mem
		appLogger.Warn("未配置 Redis，使用进程内缓存")
	}

	// 5. MySQL：分析助手与业务日志
	var (
		assistants subagents.AssistantDirectory
		sink       store.Sink = store.NopSink{}
	)
	if cfg.Databases.MySQL.Address != "" {
		db, err := mysql.GetDB(&cfg.Databases.MySQL, appLogger)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to connect mysql: %v", err))
		}
		defer mysql.Close()
		if err := store.Migrate(db); err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to migrate mysql: %v", err))
		}
		assistants = store.NewAssistantStore(db, turnCache, 10*time.Minute)
		sink = store.NewMySQLSink(db)
		health["mysql"] = mysql.HealthCheck
	}

	// 6. MongoDB：轮次记录
	var turns store.TurnStore
	if cfg.Databases.MongoDB.Address != "" {
		mdb, err := mongo.Database(&cfg.Databases.MongoDB, appLogger)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to connect mongodb: %v", err))
		}
		defer func() { _ = mongo.Close(context.Background()) }()
		ts := store.NewMongoTurnStore(mdb, cfg.Databases.MongoDB.Collection)
		if err := ts.EnsureIndexes(ctx); err != nil {
			appLogger.Warn(fmt.Sprintf("创建轮次索引失败: %v", err))
		}
		turns = ts
		health["mongodb"] = mongo.HealthCheck
	}

	// 7. 文件导出，配置了 MinIO 时上传到对象存储
	exporter := &store.FileExporter{
		Dir:           cfg.Export.Dir,
		PublicBaseURL: cfg.Export.PublicBaseURL,
		LicenseKey:    cfg.Export.LicenseKey,
		Log:           appLogger,
	}
	if cfg.Databases.MinIO.Endpoint != "" {
		mc, err := minio.GetClient(&cfg.Databases.MinIO, appLogger)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to connect minio: %v", err))
		}
		exporter.Uploader = store.NewMinIOUploader(mc, cfg.Databases.MinIO.Bucket, appLogger)
		health["minio"] = minio.HealthCheck
	}

	// 8. Kafka 事件发布
	var publisher service.Publisher
	if len(cfg.Databases.Kafka.Brokers) > 0 {
		kc, err := kafka.GetClient(&cfg.Databases.Kafka, appLogger)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to create kafka client: %v", err))
		}
		ep := kafka.NewEventPublisher(kc)
		defer func() {
			if err := ep.Close(); err != nil {
				appLogger.Error(fmt.Sprintf("Failed to close event publisher cleanly: %v", err))
			}
			_ = kc.Close()
		}()
		publisher = ep
		health["kafka"] = kc.HealthCheck
		appLogger.Info("Kafka event publisher initialized")
	}

	// 9. 模型客户端
	inner, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create LLM client: %v", err))
	}
	model, err := llm.NewGuarded(inner, cfg.LLM.Guard)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to guard LLM client: %v", err))
	}
	appLogger.Info("LLM client initialized: " + cfg.LLM.Provider + "/" + cfg.LLM.Model)

	// 10. 数据查询
	query, closeQuery, err := dataquery.New(ctx, cfg.DataQuery, cfg.Agent.MaxRetryAttempts, turnCache, appLogger)
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create data query client: %v", err))
	}
	defer func() { _ = closeQuery() }()

	encoder, err := textsplit.NewTiktokenEncoder()
	if err != nil {
		appLogger.Warn("加载 tiktoken 词表失败，按字符计数: " + err.Error())
		encoder = nil
	}

	// 11. 处理器与子智能体
	handlers := handler.NewDefaultRegistry(&handler.Deps{Assistants: assistants})
	agents := subagents.NewRegistry(&subagents.Deps{
		LLM:        model,
		Logger:     appLogger,
		Assistants: assistants,
		DataQuery:  query,
		Exporter:   exporter,
		Config:     cfg.Agent,
		Services:   handlers.Services,
		Encoder:    encoder,
	})

	orch := orchestrator.New(agents, handlers,
		orchestrator.WithCache(turnCache),
		orchestrator.WithLogger(appLogger),
	)

	svcOpts := []service.Option{service.WithSink(sink), service.WithLogger(appLogger)}
	if turns != nil {
		svcOpts = append(svcOpts, service.WithTurnStore(turns))
	}
	if publisher != nil {
		svcOpts = append(svcOpts, service.WithPublisher(publisher))
	}
	svc := service.NewAssistantService(orch, cfg.Agent.TurnDefaults(), svcOpts...)
	appLogger.Info("Assistant service core initialized")

	apiOpts := []api.Option{api.WithLogger(appLogger)}
	for name, check := range health {
		apiOpts = append(apiOpts, api.WithHealthCheck(name, check))
	}

	// 12. etcd 服务目录
	if len(cfg.Databases.Etcd.Endpoints) > 0 {
		sd, err := etcd.NewServiceDiscovery(cfg.Databases.Etcd)
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to create service discovery client: %v", err))
		}
		defer sd.Close()
		catalog := agent.NewCatalog(sd, cfg.Databases.Etcd.LeaseTTL)
		hostname, _ := os.Hostname()
		stopLease, err := catalog.Publish(ctx, agent.CatalogEntry{
			Instance: fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
			Address:  cfg.Server.Address,
			Version:  cfg.App.Version,
			Handlers: handlers.Names(),
			Agents:   agents.ListMetadata(),
		})
		if err != nil {
			appLogger.Fatal(fmt.Sprintf("Failed to publish catalog: %v", err))
		}
		defer close(stopLease)
		apiOpts = append(apiOpts, api.WithCatalog(catalog))
		appLogger.Info("Service catalog published to etcd")
	}

	// 13. HTTP 服务
	router := api.NewRouter(cfg.Server.Mode, api.NewAPI(svc, handlers, agents, apiOpts...), appLogger)
	server, err := http.NewServer(cfg, http.WithLogger(appLogger))
	if err != nil {
		appLogger.Fatal(fmt.Sprintf("Failed to create HTTP server: %v", err))
	}
	server.Handle("/", router)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			appLogger.Fatal(fmt.Sprintf("HTTP server failed: %v", err))
		}
	case <-ctx.Done():
		appLogger.Info("Shutting down assistant service")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			appLogger.Error(fmt.Sprintf("HTTP server shutdown failed: %v", err))
		}
	}
}
