// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/tabletop/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.RoomModel{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) Load(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	var room models.RoomModel
	if err := p.db.WithContext(ctx).Where("id = ?", roomID).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	return room.Record(), nil
}

func (p *GormPostgreSQL) Save(ctx context.Context, roomID string, snapshot models.Snapshot) error {
	result := p.db.WithContext(ctx).
		Model(&models.RoomModel{ID: roomID}).
		Select("State", "UpdatedAt").
		Updates(models.RoomModel{State: snapshot, UpdatedAt: time.Now().UTC()})
	if result.Error != nil {
		return fmt.Errorf("save room %s: %w", roomID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) Create(ctx context.Context, roomID, name, gmUserID string) error {
	room := models.RoomModel{
		ID:       roomID,
		Name:     name,
		GMUserID: gmUserID,
		State:    emptySnapshot(),
	}
	result := p.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&room)
	if result.Error != nil {
		return fmt.Errorf("create room %s: %w", roomID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRoomExists
	}
	return nil
}

func (p *GormPostgreSQL) Delete(ctx context.Context, roomID string) error {
	result := p.db.WithContext(ctx).Where("id = ?", roomID).Delete(&models.RoomModel{})
	if result.Error != nil {
		return fmt.Errorf("delete room %s: %w", roomID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) ListByGM(ctx context.Context, gmUserID string) ([]models.RoomSummary, error) {
	var rooms []models.RoomModel
	err := p.db.WithContext(ctx).
		Select("id", "name", "gm_user_id", "updated_at").
		Where("gm_user_id = ?", gmUserID).
		Order("updated_at DESC, id").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	result := make([]models.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		result = append(result, r.Record().Summary())
	}
	return result, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
