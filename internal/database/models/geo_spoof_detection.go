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
	ReviewPending   = "pending"
	ReviewConfirmed = "confirmed"
	ReviewDismissed = "dismissed"
)

// GeoSpoofDetection is the evidence record for a location claim that scored as suspicious
type GeoSpoofDetection struct {
	ID     uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	// Claimed position and the request address
	IPAddress string  `gorm:"size:45" json:"ip_address"`
	Latitude  float64 `gorm:"not null" json:"latitude"`
	Longitude float64 `gorm:"not null" json:"longitude"`

	// Position resolved from the address, equal to the claim when intelligence was unavailable
	IPLatitude  float64 `json:"ip_latitude"`
	IPLongitude float64 `json:"ip_longitude"`

	DistanceKm     int        `gorm:"not null;default:0" json:"distance_km"`
	VelocityKmh    *int       `json:"velocity_kmh"`
	SuspicionScore int        `gorm:"not null;index" json:"suspicion_score"`
	DetectionFlags StringList `gorm:"type:text" json:"detection_flags"`

	IsConfirmedSpoof bool       `gorm:"not null;default:false;index" json:"is_confirmed_spoof"`
	ReviewState      string     `gorm:"size:16;not null;default:pending;index" json:"review_state"`
	ReviewReason     string     `gorm:"size:500" json:"review_reason,omitempty"`
	ReviewedBy       *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	ThrottleApplied  bool       `gorm:"not null;default:false" json:"throttle_applied"`
	Version          int        `gorm:"not null;default:1" json:"-"`

	DetectedAt time.Time `gorm:"not null" json:"detected_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GeoSpoofDetection) TableName() string {
	return "geo_spoof_detections"
}
