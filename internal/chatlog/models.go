package chatlog

import "time"

// MessageLog 群消息日志
type MessageLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	MessageID  int64  `gorm:"index" json:"message_id"`
	GroupID    int64  `gorm:"index" json:"group_id"`
	UserID     int64  `gorm:"index" json:"user_id"`
	Nickname   string `gorm:"type:varchar(100)" json:"nickname"`
	Card       string `gorm:"type:varchar(100)" json:"card"`
	Role       string `gorm:"type:varchar(20)" json:"role"`
	Content    string `gorm:"type:text" json:"content"`
	MentionBot bool   `gorm:"default:false" json:"mention_bot"`
	Replied    bool   `gorm:"default:false" json:"replied"` // 机器人是否回复过这条消息
	SelfSent   bool   `gorm:"default:false" json:"self_sent"`
}

func (MessageLog) TableName() string { return "message_logs" }
