package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStockID(t *testing.T) {
	tests := []struct {
		name         string
		id           string
		wantCode     string
		wantExchange Exchange
		wantErr      bool
	}{
		{name: "shanghai", id: "600887.SH", wantCode: "600887", wantExchange: ExchangeShanghai},
		{name: "lowercase exchange", id: "000001.sz", wantCode: "000001", wantExchange: ExchangeShenzhen},
		{name: "missing exchange", id: "600887", wantErr: true},
		{name: "empty code", id: ".SH", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exchange, err := ParseStockID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExchange, exchange)
		})
	}
}

func TestRemoteCode(t *testing.T) {
	code, err := RemoteCode("600887.SH")
	require.NoError(t, err)
	assert.Equal(t, "SH600887", code)

	_, err = RemoteCode("bogus")
	assert.Error(t, err)
}

func TestStockBaseInfo_JSONShape(t *testing.T) {
	info := StockBaseInfo{
		ID:             "600519.SH",
		Code:           "600519",
		Exchange:       ExchangeShanghai,
		Name:           "贵州茅台",
		ROE:            30.1,
		TotalMarketCap: 2.1e12,
		TTMPE:          28.5,
		Industry:       "酿酒行业",
	}

	data, err := json.Marshal(info)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stockExchangeName":"SH"`)
	assert.Contains(t, string(data), `"INDUSTRY":"酿酒行业"`)

	assert.Equal(t, Snapshot{TTMPE: 28.5, TotalMarketCap: 2.1e12}, info.Snapshot())
}

func TestMetaInfo_Touch(t *testing.T) {
	var meta MetaInfo
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	meta.Touch(DatasetLeadingIndicators, now)

	assert.Equal(t, now.UnixMilli(), meta.UpdateTime[DatasetLeadingIndicators])
}
