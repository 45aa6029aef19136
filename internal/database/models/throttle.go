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

// Throttle is a time-boxed visibility restriction applied to a user
type Throttle struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              int64      `gorm:"not null;index" json:"user_id"`
	Severity            int        `gorm:"not null" json:"severity"`
	Reason              string     `gorm:"size:64;not null" json:"reason"`
	VisibilityReduction float64    `gorm:"not null" json:"visibility_reduction"`
	Notes               string     `gorm:"size:1000" json:"notes,omitempty"`
	CreatedBy           *int64     `json:"created_by,omitempty"`
	StartedAt           time.Time  `gorm:"not null" json:"started_at"`
	ExpiresAt           *time.Time `gorm:"index" json:"expires_at"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Throttle) TableName() string {
	return "throttles"
}

// ActiveAt reports whether the throttle is in force at t. A nil expiry never lapses.
func (t *Throttle) ActiveAt(at time.Time) bool {
	return t.ExpiresAt == nil || t.ExpiresAt.After(at)
}

var visibilityBySeverity = map[int]float64{
	1: 0.70,
	2: 0.50,
	3: 0.30,
	4: 0.15,
	5: 0.05,
}

// VisibilityForSeverity maps a severity level to the fraction of normal visibility kept.
// Unknown levels keep full visibility.
func VisibilityForSeverity(severity int) float64 {
	if v, ok := visibilityBySeverity[severity]; ok {
		return v
	}
	return 1.0
}
