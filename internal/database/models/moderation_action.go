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
package models

import (
	"time"
)

const (
	ActionGeoSpoofConfirm = "geo_spoof_confirm"
	ActionGeoSpoofDismiss = "geo_spoof_dismiss"
	ActionThrottleRemoved = "throttle_removed"
)

// ModerationAction is the audit row written alongside every moderator decision
type ModerationAction struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ModeratorID  int64     `gorm:"not null;index" json:"moderator_id"`
	TargetUserID int64     `gorm:"not null;index" json:"target_user_id"`
	ActionType   string    `gorm:"size:32;not null;index" json:"action_type"`
	Reason       string    `gorm:"size:500" json:"reason,omitempty"`
	Metadata     JSONMap   `gorm:"type:text" json:"metadata"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ModerationAction) TableName() string {
	return "moderation_actions"
}
