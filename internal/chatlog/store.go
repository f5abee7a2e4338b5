package chatlog

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"bym-bot/internal/config"
)

// Store 消息日志存储
type Store struct {
	db     *gorm.DB
	cfg    *config.Config
	stopCh chan struct{}
}

// NewStore 连接 MySQL 并迁移表结构
func NewStore(cfg *config.Config) (*Store, error) {
	mysqlCfg := cfg.ChatLog.MySQL
	if mysqlCfg.Host == "" {
		mysqlCfg.Host = "127.0.0.1"
	}
	if mysqlCfg.Port == 0 {
		mysqlCfg.Port = 3306
	}
	if mysqlCfg.DBName == "" {
		mysqlCfg.DBName = "bym_bot"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		mysqlCfg.User,
		mysqlCfg.Password,
		mysqlCfg.Host,
		mysqlCfg.Port,
		mysqlCfg.DBName,
	)

	db, err := gorm.Open(mysql.Open(dsn))
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 数据库失败: %w", err)
	}

	if err := db.AutoMigrate(&MessageLog{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	s := &Store{
		db:     db,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}

	if cfg.ChatLog.Cleanup.Enabled == nil || *cfg.ChatLog.Cleanup.Enabled {
		go s.cleanupLoop()
	}

	return s, nil
}

// AddMessage 记录一条消息
func (s *Store) AddMessage(msg MessageLog) error {
	return s.db.Create(&msg).Error
}

// MarkReplied 标记消息已被回复
func (s *Store) MarkReplied(messageID int64) error {
	return s.db.Model(&MessageLog{}).
		Where("message_id = ?", messageID).
		Update("replied", true).Error
}

// GetRecentMessages 获取某群最近的消息，按时间正序返回
func (s *Store) GetRecentMessages(groupID int64, limit int) []MessageLog {
	var msgs []MessageLog
	s.db.Where("group_id = ?", groupID).
		Order("created_at DESC").Limit(limit).Find(&msgs)

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}

// ListMessages 分页查询消息日志（供管理界面用）
func (s *Store) ListMessages(groupID int64, page, pageSize int) ([]MessageLog, int64, error) {
	var items []MessageLog
	var total int64

	q := s.db.Model(&MessageLog{})
	if groupID > 0 {
		q = q.Where("group_id = ?", groupID)
	}
	q.Count(&total)

	err := q.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// GetStats 获取统计信息
func (s *Store) GetStats() map[string]int64 {
	stats := make(map[string]int64)
	var messages, replied, groups int64
	s.db.Model(&MessageLog{}).Count(&messages)
	s.db.Model(&MessageLog{}).Where("replied = ?", true).Count(&replied)
	s.db.Model(&MessageLog{}).Distinct("group_id").Count(&groups)
	stats["messages"] = messages
	stats["replied"] = replied
	stats["groups"] = groups
	return stats
}

// cleanupLoop 定期清理旧消息，每个群只保留最新的若干条
func (s *Store) cleanupLoop() {
	interval := time.Duration(s.cfg.ChatLog.Cleanup.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	keep := s.cfg.ChatLog.Cleanup.KeepLatest
	if keep <= 0 {
		keep = 2000
	}

	var groupIDs []int64
	if err := s.db.Model(&MessageLog{}).Distinct("group_id").Pluck("group_id", &groupIDs).Error; err != nil {
		zap.L().Warn("查询群列表失败", zap.Error(err))
		return
	}

	var total int64
	for _, gid := range groupIDs {
		// 找到每个群第 keep 新的那条消息作为界限
		var boundary MessageLog
		err := s.db.Where("group_id = ?", gid).
			Order("created_at DESC").Offset(keep - 1).First(&boundary).Error
		if err != nil {
			continue
		}

		res := s.db.Where("group_id = ? AND created_at < ?", gid, boundary.CreatedAt).
			Delete(&MessageLog{})
		if res.Error != nil {
			zap.L().Warn("清理消息日志失败", zap.Int64("group_id", gid), zap.Error(res.Error))
			continue
		}
		total += res.RowsAffected
	}

	if total > 0 {
		zap.L().Info("消息日志清理完成", zap.Int64("deleted", total))
	}
}

// Close 停止清理并关闭数据库连接
func (s *Store) Close() error {
	close(s.stopCh)
	if sqlDB, err := s.db.DB(); err == nil {
		return sqlDB.Close()
	}
	return nil
}
