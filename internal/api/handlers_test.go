package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptmap/server/config"
	"aptmap/server/internal/database"
)

func newTestRouter(t *testing.T) (*gin.Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Windows.RecentMonths = 3
	cfg.Windows.SeriesMonths = 35
	cfg.Limits.Max = 5000
	cfg.Limits.ClusterDefault = 1200
	cfg.Limits.DetailDefault = 5
	cfg.Tiles.MaxZoom = 22
	cfg.Tiles.CacheSeconds = 60

	db := database.NewWithPool(mock, logger, cfg.Windows.RecentMonths, cfg.Windows.SeriesMonths)

	router := gin.New()
	SetupRoutes(router, db, cfg, logger)
	return router, mock
}

func doGet(router *gin.Engine, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	router.ServeHTTP(w, req)
	return w
}

func strPtr(s string) *string { return &s }

var clusterCols = []string{
	"lawd_cd", "umd_nm", "apt_nm", "lat", "lng",
	"trade_cnt", "min_price", "max_price", "last_trade_ymd",
}

func TestGetTradeClusters_OK(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery(`DISTINCT ON \(lawd_cd, apt_nm\)`).
		WithArgs(3, 37.4, 37.7, 126.8, 127.2, 1200).
		WillReturnRows(pgxmock.NewRows(clusterCols).
			AddRow("11110", strPtr("Sajik-dong"), "Test Apt", 37.5759, 126.9768, 3, 50000, 60000, strPtr("20250810")))

	w := doGet(router, "/api/map/trades?minLat=37.4&minLng=126.8&maxLat=37.7&maxLng=127.2")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OK    bool `json:"ok"`
		Items []struct {
			AptNm    string  `json:"aptNm"`
			Lat      float64 `json:"lat"`
			TradeCnt int     `json:"tradeCnt"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Test Apt", body.Items[0].AptNm)
	assert.Equal(t, 3, body.Items[0].TradeCnt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTradeClusters_InvalidBBox(t *testing.T) {
	router, mock := newTestRouter(t)

	for _, url := range []string{
		"/api/map/trades",
		"/api/map/trades?minLat=abc&minLng=126.8&maxLat=37.7&maxLng=127.2",
		"/api/map/trades?minLat=NaN&minLng=126.8&maxLat=37.7&maxLng=127.2",
		"/api/map/trades?minLat=Inf&minLng=126.8&maxLat=37.7&maxLng=127.2",
		"/api/map/trades?minLat=37.4&minLng=126.8&maxLat=37.7",
	} {
		w := doGet(router, url)
		assert.Equal(t, http.StatusBadRequest, w.Code, "url %s", url)
	}

	// nothing reached the store
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTradeClusters_LimitClamped(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery(`DISTINCT ON \(lawd_cd, apt_nm\)`).
		WithArgs(3, 37.4, 37.7, 126.8, 127.2, 5000).
		WillReturnRows(pgxmock.NewRows(clusterCols))

	w := doGet(router, "/api/map/trades?minLat=37.4&minLng=126.8&maxLat=37.7&maxLng=127.2&limit=999999")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRentClusters_UnknownRentType(t *testing.T) {
	router, mock := newTestRouter(t)

	w := doGet(router, "/api/map/rents?minLat=37.4&minLng=126.8&maxLat=37.7&maxLng=127.2&rentType=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "all|jeonse|monthly")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTile_InvalidCoordinates(t *testing.T) {
	router, mock := newTestRouter(t)

	for _, url := range []string{
		"/api/map/tiles/25/0/0.mvt",  // zoom beyond max
		"/api/map/tiles/5/32/0.mvt",  // column outside grid
		"/api/map/tiles/5/0/32.mvt",  // row outside grid
		"/api/map/tiles/z/0/0.mvt",   // not a number
		"/api/map/tiles/-1/0/0.mvt",
	} {
		w := doGet(router, url)
		assert.Equal(t, http.StatusBadRequest, w.Code, "url %s", url)
	}

	// rejected before any query executed
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTile_UnknownLayer(t *testing.T) {
	router, mock := newTestRouter(t)

	w := doGet(router, "/api/map/tiles/12/3492/1585.mvt?layer=parcels")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTile_Empty(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery(`DISTINCT ON \(lawd_cd, apt_nm\)`).
		WithArgs(3, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 5000).
		WillReturnRows(pgxmock.NewRows(clusterCols))

	w := doGet(router, "/api/map/tiles/12/3492/1585.mvt?layer=trades")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTile_OK(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery(`DISTINCT ON \(lawd_cd, apt_nm\)`).
		WithArgs(3, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 5000).
		WillReturnRows(pgxmock.NewRows(clusterCols).
			AddRow("11110", strPtr("Sajik-dong"), "Test Apt", 37.5759, 126.9768, 3, 50000, 60000, strPtr("20250810")))

	w := doGet(router, "/api/map/tiles/12/3492/1585.mvt")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "application/vnd.mapbox-vector-tile", w.Header().Get("Content-Type"))
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Body.Bytes())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentTrades_MissingIdentifiers(t *testing.T) {
	router, mock := newTestRouter(t)

	for _, url := range []string{
		"/api/map/apt/recent-trades",
		"/api/map/apt/recent-trades?lawdCd=11110",
		"/api/map/apt/recent-trades?aptNm=Test+Apt",
	} {
		w := doGet(router, url)
		assert.Equal(t, http.StatusBadRequest, w.Code, "url %s", url)
		assert.Contains(t, w.Body.String(), "required")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentTrades_OK(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery(`FROM apt_trade t`).
		WithArgs("11110", "Test Apt", 3, 5).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "deal_ymd", "deal_amount_manwon", "exclu_use_ar", "floor", "deal_dong", "rgst_date",
		}).AddRow("42", strPtr("20250810"), intPtr(55000), floatPtr(84.97), intPtr(12), (*string)(nil), (*string)(nil)))

	w := doGet(router, "/api/map/apt/recent-trades?lawdCd=11110&aptNm=Test+Apt")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OK    bool              `json:"ok"`
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	require.Len(t, body.Items, 1)

	// empty registration marker serializes as null, not false
	assert.Contains(t, string(body.Items[0]), `"isRegistered":null`)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRentSummary_ZeroedEnvelope(t *testing.T) {
	router, mock := newTestRouter(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`GROUP BY r\.lawd_cd, r\.apt_nm`).
		WithArgs("11110", "Test Apt").
		WillReturnRows(pgxmock.NewRows([]string{"lawd_cd", "umd_nm", "apt_nm"}))
	mock.ExpectQuery(`COALESCE\(ROUND`).
		WithArgs(3, "11110", "Test Apt").
		WillReturnRows(pgxmock.NewRows([]string{"avg_deposit", "avg_monthly", "cnt"}).AddRow(0, 0, 0))
	mock.ExpectQuery(`to_char`).
		WithArgs("11110", "Test Apt", 35).
		WillReturnRows(pgxmock.NewRows([]string{"ym", "avg_deposit", "avg_monthly", "cnt"}))

	w := doGet(router, "/api/map/apt/rent-summary?lawdCd=11110&aptNm=Test+Apt")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OK     bool `json:"ok"`
		Apt    struct {
			LawdCd string `json:"lawdCd"`
			AptNm  string `json:"aptNm"`
		} `json:"apt"`
		Last3M struct {
			AvgDeposit int `json:"avgDeposit"`
			Cnt        int `json:"cnt"`
		} `json:"last3m"`
		Series []any `json:"series"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, "11110", body.Apt.LawdCd)
	assert.Equal(t, "Test Apt", body.Apt.AptNm)
	assert.Equal(t, 0, body.Last3M.AvgDeposit)
	assert.Equal(t, 0, body.Last3M.Cnt)
	assert.NotNil(t, body.Series)
	assert.Empty(t, body.Series)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTradePriceChart_MissingAptNm(t *testing.T) {
	router, mock := newTestRouter(t)

	w := doGet(router, "/api/chart/apt-price")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJeonseChart_OK(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery(`COALESCE\(r\.monthly_rent_manwon, 0\) = 0`).
		WithArgs("Test Apt").
		WillReturnRows(pgxmock.NewRows([]string{"ym", "avg_price", "cnt"}).
			AddRow("202504", intPtr(31000), 2))

	w := doGet(router, "/api/chart/apt-jeonse?aptNm=Test+Apt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"202504"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreFailure_IsServerError(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery(`DISTINCT ON \(lawd_cd, apt_nm\)`).
		WithArgs(3, 37.4, 37.7, 126.8, 127.2, 1200).
		WillReturnError(assert.AnError)

	w := doGet(router, "/api/map/trades?minLat=37.4&minLng=126.8&maxLat=37.7&maxLng=127.2")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// internal detail stays out of the response body
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }
