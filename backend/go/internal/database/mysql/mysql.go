package mysql

import (
	"context"
	"fmt"
	"sync"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/pkg/logger"
)

var (
	dbInstance *gorm.DB
	once       sync.Once
	initErr    error
)

// DSN 构建 MySQL 连接串，密码中的特殊字符由驱动转义。
func DSN(cfg *config.MySQLConfig) string {
	dc := mysqldriver.NewConfig()
	dc.User = cfg.Username
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = cfg.Address
	dc.DBName = cfg.Database
	dc.ParseTime = true
	dc.Loc = time.Local
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// gormWriter 把 gorm 的日志转发到服务日志。
type gormWriter struct{ log *logger.Logger }

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(fmt.Sprintf(format, args...))
}

// newGormLogger 只记录慢查询和错误。
func newGormLogger(cfg *config.MySQLConfig, log *logger.Logger) (gormlogger.Interface, error) {
	slow := 200 * time.Millisecond
	if cfg.SlowQuery != "" {
		d, err := time.ParseDuration(cfg.SlowQuery)
		if err != nil {
			return nil, fmt.Errorf("无效的 MySQL slowQuery: %w", err)
		}
		slow = d
	}
	return gormlogger.New(gormWriter{log: log.WithComponent("gorm")}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	}), nil
}

// GetDB 使用单例模式初始化并返回一个 GORM 数据库实例，供报告日志与分析助手目录使用。
func GetDB(cfg *config.MySQLConfig, log *logger.Logger) (*gorm.DB, error) {
	once.Do(func() {
		gl, err := newGormLogger(cfg, log)
		if err != nil {
			initErr = err
			return
		}
		db, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{Logger: gl})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 MySQL %s: %w", cfg.Address, err)
			return
		}

		sqlDB, err := db.DB()
		if err != nil {
			initErr = fmt.Errorf("无法获取底层 SQL DB 实例: %w", err)
			return
		}
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
		}

		log.WithPayload(map[string]interface{}{"address": cfg.Address, "database": cfg.Database}).Info("成功连接到 MySQL")
		dbInstance = db
	})

	return dbInstance, initErr
}

// Close 关闭单例的数据库连接。
func Close() error {
	if dbInstance == nil {
		return nil
	}
	sqlDB, err := dbInstance.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck 检查数据库连接，并报告等待连接的情况。
func HealthCheck(ctx context.Context) error {
	if dbInstance == nil {
		return fmt.Errorf("MySQL 连接未初始化")
	}
	sqlDB, err := dbInstance.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if st := sqlDB.Stats(); st.MaxOpenConnections > 0 && st.InUse >= st.MaxOpenConnections && st.WaitCount > 0 {
		return fmt.Errorf("MySQL 连接池已满: %d/%d", st.InUse, st.MaxOpenConnections)
	}
	return nil
}
