package infrastructure

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pkg/errors"
)

// NewDB 建立 MySQL 连接并迁移表结构
func NewDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mysql")
	}

	if err := db.AutoMigrate(&OrderModel{}, &FraudEventModel{}, &ReturnRequestModel{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate schema")
	}
	return db, nil
}
