// MIT License
//
// Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
package repositories

import (
	"context"

	"geowarden/internal/database/models"

	"gorm.io/gorm"
)

type ModerationActionRepository interface {
	Create(ctx context.Context, action *models.ModerationAction) error
	List(ctx context.Context, page Page, targetUserID int64) (PageResult[models.ModerationAction], error)
}

type moderationActionRepo struct {
	db *gorm.DB
}

func NewModerationActionRepository(db *gorm.DB) ModerationActionRepository {
	return &moderationActionRepo{db: db}
}

func (r *moderationActionRepo) Create(ctx context.Context, action *models.ModerationAction) error {
	return wrapErr("create moderation action", r.db.WithContext(ctx).Create(action).Error)
}

// List returns audit rows newest first. A zero targetUserID lists every user.
func (r *moderationActionRepo) List(ctx context.Context, page Page, targetUserID int64) (PageResult[models.ModerationAction], error) {
	query := r.db.WithContext(ctx).Model(&models.ModerationAction{})
	if targetUserID != 0 {
		query = query.Where("target_user_id = ?", targetUserID)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return PageResult[models.ModerationAction]{}, wrapErr("count moderation actions", err)
	}

	var actions []models.ModerationAction
	err := query.
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&actions).Error
	if err != nil {
		return PageResult[models.ModerationAction]{}, wrapErr("list moderation actions", err)
	}

	return newPageResult(actions, page, total), nil
}
