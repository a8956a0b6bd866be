package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"merch_store_v1_202601/internal/controller"
	"merch_store_v1_202601/internal/model"
	"merch_store_v1_202601/internal/repository"
	"merch_store_v1_202601/internal/router"
	"merch_store_v1_202601/internal/service"
	"merch_store_v1_202601/internal/task"
	"merch_store_v1_202601/pkg/database"
	"merch_store_v1_202601/pkg/merchize"
)

func main() {
	// 0. 加载 .env（不存在时忽略，生产环境直接用环境变量）
	_ = godotenv.Load()

	// 1. 初始化数据库
	db := initDatabase()

	// 2. 初始化依赖
	deps := initDependencies(db)

	// 3. 启动定时任务
	initTasks(deps)

	// 4. 初始化路由
	r := router.SetupRouter(deps.Controllers)

	// 5. 启动服务
	startServer(r, deps)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers *router.Controllers
	SyncTask    *task.CatalogSyncTask
}

// Repositories 仓库集合
type Repositories struct {
	Catalog   repository.CatalogRepository
	SyncState repository.SyncStateRepository
}

// Services 服务集合
type Services struct {
	RateTable *service.RateTable
	Matcher   *service.SkuMatcher
	Currency  *service.CurrencyService
	Quote     *service.ShippingQuoteService
	Sync      *service.CatalogSyncService
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_DSN",
		"host=localhost user=store_admin password=1234 dbname=merch_store port=5432 sslmode=disable")

	return database.InitDB(dsn,
		// Catalog
		&model.Product{}, &model.ProductVariant{}, &model.ShippingBand{},
		// Sync
		&model.CatalogSyncState{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		Catalog:   repository.NewCatalogRepository(db),
		SyncState: repository.NewSyncStateRepository(db),
	}

	// -------- 行存储：数据集打底，DB 同步结果按 SKU 覆盖 --------
	sources := []service.RowSource{}
	if datasetPath := getEnv("SHIPPING_DATASET_PATH", "data/shipping_rates.json"); datasetPath != "" {
		sources = append(sources, service.NewDatasetSource(datasetPath))
	}
	sources = append(sources, service.NewRepoSource(repos.Catalog))

	rateTable := service.NewRateTable(sources...)
	matcher := service.NewSkuMatcher(rateTable)

	// -------- 外部 API 客户端 --------
	merchizeClient := merchize.NewClient(&merchize.Config{
		BaseURL: getEnv("MERCHIZE_BASE_URL", ""),
		APIKey:  getEnv("MERCHIZE_API_KEY", ""),
	})
	currencySvc := service.NewCurrencyService(&service.FXConfig{
		BaseURL: getEnv("FX_BASE_URL", ""),
	})

	// -------- 业务服务 --------
	services := &Services{
		RateTable: rateTable,
		Matcher:   matcher,
		Currency:  currencySvc,
		Quote:     service.NewShippingQuoteService(rateTable, matcher, currencySvc),
		Sync: service.NewCatalogSyncService(
			merchizeClient, repos.Catalog, repos.SyncState, rateTable, matcher,
		),
	}

	// -------- Controller 层 --------
	controllers := &router.Controllers{
		Shipping: controller.NewShippingController(services.Quote),
		Sync:     controller.NewSyncController(services.Sync),
		Catalog:  controller.NewCatalogController(repos.Catalog),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
	}
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) {
	syncTask := task.NewCatalogSyncTask(deps.Services.Sync)
	syncTask.Start()
	deps.SyncTask = syncTask

	log.Println("定时任务已启动")
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine, deps *Dependencies) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动于 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到退出信号，开始优雅关闭...")

	// 先停定时任务，再关 HTTP
	if deps.SyncTask != nil {
		deps.SyncTask.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务关闭异常: %v", err)
	}

	log.Println("服务已退出")
}

// getEnv 读取环境变量，缺省回退默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
