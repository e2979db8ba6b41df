// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Exchange identifies the listing venue of a stock.
type Exchange string

const (
	ExchangeShanghai Exchange = "SH"
	ExchangeShenzhen Exchange = "SZ"
	ExchangeBeijing  Exchange = "BJ"
)

// StockBaseInfo is one entry of the screening universe.
// ID is "{code}.{exchange}", e.g. "600887.SH".
type StockBaseInfo struct {
	ID             string   `json:"id"`
	Code           string   `json:"code"`
	Exchange       Exchange `json:"stockExchangeName"`
	Name           string   `json:"name"`
	ROE            float64  `json:"roe"`
	TotalMarketCap float64  `json:"totalMarketCap"`
	TTMPE          float64  `json:"ttmPe"`
	Industry       string   `json:"INDUSTRY"`
}

// Snapshot returns the point-in-time figures used by the pe/zsz pseudo-variables.
func (s StockBaseInfo) Snapshot() Snapshot {
	return Snapshot{TTMPE: s.TTMPE, TotalMarketCap: s.TotalMarketCap}
}

// Snapshot holds point-in-time market figures of a stock.
type Snapshot struct {
	TTMPE          float64 `json:"ttmPe"`
	TotalMarketCap float64 `json:"totalMarketCap"`
}

// StockWithLeadingIndicators caches the leading indicator series of a stock.
type StockWithLeadingIndicators struct {
	ID         string   `json:"id"`
	Code       string   `json:"code"`
	Exchange   Exchange `json:"stockExchangeName"`
	Name       string   `json:"name"`
	Indicators Series   `json:"indicators"`
	UpdateTime int64    `json:"updateTime,omitempty"` // unix millis
}

// StockWithReports caches the merged annual statements of a stock.
type StockWithReports struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Reports Series `json:"financialReportData"`
}

// Dataset names used as keys of MetaInfo.UpdateTime.
const (
	DatasetStockBaseInfo     = "stock-base-info"
	DatasetLeadingIndicators = "leading-indicators"
	DatasetFinancialReports  = "financial-reports"
)

// MetaInfo tracks dataset freshness and the leading indicator sync checkpoint.
type MetaInfo struct {
	UpdateTime map[string]int64 `json:"updateTime,omitempty"` // unix millis per dataset
	SyncPage   *int             `json:"stocksWithLeadingIndicatorsFetchingPage,omitempty"`
	// SyncPages is the page count SyncPage was computed with.
	SyncPages *int `json:"stocksWithLeadingIndicatorsFetchingPages,omitempty"`
}

// SetSyncCheckpoint records page of a sync split into pages.
func (m *MetaInfo) SetSyncCheckpoint(page, pages int) {
	m.SyncPage = &page
	m.SyncPages = &pages
}

// ClearSyncCheckpoint removes the sync checkpoint.
func (m *MetaInfo) ClearSyncCheckpoint() {
	m.SyncPage = nil
	m.SyncPages = nil
}

// Touch records t as the update time of dataset.
func (m *MetaInfo) Touch(dataset string, t time.Time) {
	if m.UpdateTime == nil {
		m.UpdateTime = make(map[string]int64)
	}
	m.UpdateTime[dataset] = t.UnixMilli()
}

// ParseStockID splits "600887.SH" into its code and exchange.
func ParseStockID(id string) (string, Exchange, error) {
	code, exchange, ok := strings.Cut(id, ".")
	if !ok || code == "" || exchange == "" {
		return "", "", fmt.Errorf("invalid stock id %q", id)
	}
	return code, Exchange(strings.ToUpper(exchange)), nil
}

// RemoteCode converts "600887.SH" to the statement endpoint form "SH600887".
func RemoteCode(id string) (string, error) {
	code, exchange, err := ParseStockID(id)
	if err != nil {
		return "", err
	}
	return string(exchange) + code, nil
}
