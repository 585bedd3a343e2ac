package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/bandrev/internal/collector"
	"github.com/newthinker/bandrev/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYahoo_ImplementsCollector(t *testing.T) {
	var _ collector.Collector = (*Yahoo)(nil)
}

func TestYahoo_Name(t *testing.T) {
	y := New()
	if y.Name() != "yahoo" {
		t.Errorf("expected 'yahoo', got '%s'", y.Name())
	}
}

func TestYahoo_ToYahooSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL", "AAPL"},
		{"0700.HK", "0700.HK"},
		{"600519.SH", "600519.SS"}, // Shanghai -> SS for Yahoo
		{"000001.SZ", "000001.SZ"},
	}

	y := New()
	for _, tc := range tests {
		got := y.toYahooSymbol(tc.input)
		if got != tc.expected {
			t.Errorf("toYahooSymbol(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestYahoo_ToYahooInterval(t *testing.T) {
	assert.Equal(t, "1d", toYahooInterval("1d"))
	assert.Equal(t, "1wk", toYahooInterval("1w"))
	assert.Equal(t, "1d", toYahooInterval("1m"))
}

func newTestYahoo(t *testing.T, handler http.HandlerFunc) *Yahoo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	y := New()
	require.NoError(t, y.Init(collector.Config{Interval: "1d", Extra: map[string]any{"base_url": srv.URL}}))
	return y
}

func TestYahoo_FetchHistory(t *testing.T) {
	var gotPath string
	y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"chart":{"result":[{"timestamp":[1704153600,1704240000,1704326400],` +
			`"indicators":{"quote":[{"close":[101.5,null,103]}]}}],"error":null}}`))
	})

	bars, err := y.FetchHistory(context.Background(), "600519.SH",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "/600519.SS", gotPath)
	require.Len(t, bars, 2)
	assert.Equal(t, []float64{101.5, 103}, core.Closes(bars))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 1, bars[1].Index)
}

func TestYahoo_FetchHistory_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr *core.Error
	}{
		{"http error", http.StatusInternalServerError, ``, core.ErrDataUnavailable},
		{"bad json", http.StatusOK, `{`, core.ErrDataUnavailable},
		{"api error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, core.ErrDataUnavailable},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, core.ErrNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := y.FetchHistory(context.Background(), "AAPL", time.Time{}, time.Time{})
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestYahoo_InvalidSymbol(t *testing.T) {
	_, err := New().FetchHistory(context.Background(), "not a symbol", time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, core.ErrDataUnavailable))
}
