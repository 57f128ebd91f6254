package persistence

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nexira/nexira/internal/infrastructure/config"
	"github.com/nexira/nexira/internal/infrastructure/persistence/models"
)

// NewDBConnection 创建数据库连接
func NewDBConnection(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "sqlite":
		// 写多读多的单进程场景, 打开 WAL 降低写锁竞争
		dialector = sqlite.Open(cfg.DSN + "?_journal_mode=WAL&_busy_timeout=5000")
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	// 配置GORM
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 自动迁移模式
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// autoMigrate 自动迁移数据库结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.MessageModel{},
		&models.ThreadModel{},
		&models.ThreadMessageModel{},
		&models.StateModel{},
		&models.TraitModel{},
		&models.ChangeModel{},
		&models.SnapshotModel{},
		&models.KnowledgeFactModel{},
		&models.EpisodeModel{},
		&models.WeeklySynthesisModel{},
		&models.CuriosityModel{},
		&models.InterestModel{},
		&models.SkillModel{},
		&models.GoalModel{},
		&models.JournalModel{},
		&models.AwarenessModel{},
		&models.OperatingNoteModel{},
		&models.MistakeModel{},
		&models.UserAttrModel{},
		&models.AIValueModel{},
		&models.ConsolidationRunModel{},
		&models.ActivityModel{},
		&models.ErrorLogModel{},
		&models.EmailLogModel{},
		&models.SearchLogModel{},
		&models.CreativeWorkModel{},
	)
}
