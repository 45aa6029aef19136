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
	"errors"
	"time"

	"geowarden/internal/database/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IPReputationRepository interface {
	FindFresh(ctx context.Context, ip string, since time.Time) (*models.IPReputation, error)
	Upsert(ctx context.Context, reputation *models.IPReputation) error
}

type ipReputationRepo struct {
	db *gorm.DB
}

func NewIPReputationRepository(db *gorm.DB) IPReputationRepository {
	return &ipReputationRepo{db: db}
}

// FindFresh returns the cached entry for ip if it was refreshed at or after since, or nil.
func (r *ipReputationRepo) FindFresh(ctx context.Context, ip string, since time.Time) (*models.IPReputation, error) {
	var reputation models.IPReputation
	err := r.db.WithContext(ctx).
		Where("ip_address = ? AND last_seen >= ?", ip, since).
		Take(&reputation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find ip reputation", err)
	}
	return &reputation, nil
}

// Upsert inserts a lookup result or refreshes the existing row for the same address.
func (r *ipReputationRepo) Upsert(ctx context.Context, reputation *models.IPReputation) error {
	if reputation.FirstSeen.IsZero() {
		reputation.FirstSeen = reputation.LastSeen
	}
	if reputation.LookupCount == 0 {
		reputation.LookupCount = 1
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip_address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"has_location":   reputation.HasLocation,
			"country":        reputation.Country,
			"city":           reputation.City,
			"latitude":       reputation.Latitude,
			"longitude":      reputation.Longitude,
			"asn":            reputation.ASN,
			"asn_org":        reputation.ASNOrg,
			"is_vpn":         reputation.IsVPN,
			"is_data_center": reputation.IsDataCenter,
			"source":         reputation.Source,
			"last_seen":      reputation.LastSeen,
			"lookup_count":   gorm.Expr("ip_reputation.lookup_count + 1"),
			"updated_at":     reputation.LastSeen,
		}),
	}).Create(reputation).Error
	return wrapErr("upsert ip reputation", err)
}
