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
package intelligence

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/pterm/pterm"
)

const SourceMaxMind = "maxmind"

// MaxMindProvider resolves addresses against local GeoLite2/GeoIP2 databases
type MaxMindProvider struct {
	cityDB *geoip2.Reader
	asnDB  *geoip2.Reader
	logger *pterm.Logger
}

// NewMaxMindProvider opens the City database (required) and the ASN database (optional).
func NewMaxMindProvider(cityDBPath, asnDBPath string, logger *pterm.Logger) (*MaxMindProvider, error) {
	cityDB, err := geoip2.Open(cityDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP City database %s: %w", cityDBPath, err)
	}
	logger.Info("Loaded GeoIP City database", logger.Args("path", cityDBPath))

	provider := &MaxMindProvider{
		cityDB: cityDB,
		logger: logger,
	}

	// ASN data only sharpens VPN/data center classification
	if asnDBPath != "" {
		asnDB, err := geoip2.Open(asnDBPath)
		if err != nil {
			logger.Warn("GeoIP ASN database not available",
				logger.Args("path", asnDBPath, "error", err))
		} else {
			provider.asnDB = asnDB
			logger.Info("Loaded GeoIP ASN database", logger.Args("path", asnDBPath))
		}
	}

	return provider, nil
}

// Analyze looks the address up in the local databases. The context is unused since lookups are memory-mapped.
func (p *MaxMindProvider) Analyze(_ context.Context, ipAddress string) (*Result, error) {
	if !IsPublic(ipAddress) {
		return nil, nil
	}
	ip := net.ParseIP(ipAddress)

	result := &Result{Source: SourceMaxMind}

	record, err := p.cityDB.City(ip)
	if err != nil {
		p.logger.Debug("GeoIP City lookup failed", p.logger.Args("ip", ipAddress, "error", err))
		return nil, fmt.Errorf("%w: city lookup: %v", ErrUnavailable, err)
	}
	result.Country = record.Country.IsoCode
	result.City = record.City.Names["en"]
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		result.HasLocation = true
		result.Latitude = record.Location.Latitude
		result.Longitude = record.Location.Longitude
	}
	result.IsVPN = record.Traits.IsAnonymousProxy

	if p.asnDB != nil {
		asn, err := p.asnDB.ASN(ip)
		if err == nil {
			result.ASN = asn.AutonomousSystemNumber
			result.ASNOrg = asn.AutonomousSystemOrganization

			isVPN, isDataCenter := ClassifyASN(result.ASN)
			result.IsVPN = result.IsVPN || isVPN
			result.IsDataCenter = isDataCenter
		} else {
			p.logger.Debug("GeoIP ASN lookup failed", p.logger.Args("ip", ipAddress, "error", err))
		}
	}

	if !result.HasLocation && !result.IsVPN && !result.IsDataCenter {
		return nil, nil
	}

	p.logger.Trace("GeoIP lookup successful",
		p.logger.Args("ip", ipAddress, "country", result.Country, "city", result.City, "asn", result.ASN))
	return result, nil
}

// Close closes the GeoIP databases
func (p *MaxMindProvider) Close() error {
	if p.cityDB != nil {
		p.cityDB.Close()
	}
	if p.asnDB != nil {
		p.asnDB.Close()
	}
	p.logger.Info("Closed GeoIP databases")
	return nil
}
