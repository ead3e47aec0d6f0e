package repository

import (
	"fmt"

	"gorm.io/gorm"

	"mira-companion/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// ListByUserID returns the user's history oldest first.
func (r *MessageRepository) ListByUserID(userID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// ListRecentByUserID returns the newest limit messages in chronological order.
func (r *MessageRepository) ListRecentByUserID(userID uint, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 5
	}

	var messages []model.Message
	if err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DeleteByUserID removes the user's entire history and reports how many
// messages were dropped.
func (r *MessageRepository) DeleteByUserID(userID uint) (int64, error) {
	result := r.db.Where("user_id = ?", userID).Delete(&model.Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete messages failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}
