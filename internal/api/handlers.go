package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"aptmap/server/config"
	"aptmap/server/internal/database"
	"aptmap/server/internal/query"
	"aptmap/server/internal/tiles"
)

const mvtContentType = "application/vnd.mapbox-vector-tile"

type Handler struct {
	db     *database.Database
	cfg    *config.Config
	logger *logrus.Logger
}

func NewHandler(db *database.Database, cfg *config.Config, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Handler{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// parseFinite parses a required numeric query value; NaN and infinities
// do not pass.
func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// clampLimit resolves the optional limit parameter: unparseable values
// fall back to the default, out-of-range values are clamped into
// [1, MaxLimit] rather than rejected.
func (h *Handler) clampLimit(raw string, def int) int {
	limit := def
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > h.cfg.Limits.Max {
		limit = h.cfg.Limits.Max
	}
	return limit
}

func (h *Handler) parseBBox(c *gin.Context) (database.BBox, bool) {
	minLat, ok1 := parseFinite(c.Query("minLat"))
	minLng, ok2 := parseFinite(c.Query("minLng"))
	maxLat, ok3 := parseFinite(c.Query("maxLat"))
	maxLng, ok4 := parseFinite(c.Query("maxLng"))
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return database.BBox{}, false
	}
	return database.BBox{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng}, true
}

func (h *Handler) GetTradeClusters(c *gin.Context) {
	box, ok := h.parseBBox(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bbox"})
		return
	}
	limit := h.clampLimit(c.Query("limit"), h.cfg.Limits.ClusterDefault)

	items, err := h.db.TradeClusters(c.Request.Context(), box, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get trade clusters")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get trade clusters"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": items})
}

func (h *Handler) GetRentClusters(c *gin.Context) {
	box, ok := h.parseBBox(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bbox"})
		return
	}
	rentType, err := query.ParseRentType(c.Query("rentType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit := h.clampLimit(c.Query("limit"), h.cfg.Limits.ClusterDefault)

	items, err := h.db.RentClusters(c.Request.Context(), box, rentType, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get rent clusters")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get rent clusters"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": items})
}

// GetTile serves one z/x/y vector tile for either the trades or rents
// layer. Coordinates are validated before any query runs; a tile with
// no features is a 404, not a failure.
func (h *Handler) GetTile(c *gin.Context) {
	z, errZ := strconv.Atoi(c.Param("z"))
	x, errX := strconv.Atoi(c.Param("x"))
	y, errY := strconv.Atoi(strings.TrimSuffix(c.Param("y"), ".mvt"))
	if errZ != nil || errX != nil || errY != nil || !tiles.Valid(z, x, y, h.cfg.Tiles.MaxZoom) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tile coordinate"})
		return
	}

	layer := strings.TrimSpace(c.DefaultQuery("layer", tiles.TradesLayer))
	bound := tiles.Bound(z, x, y)
	box := database.BBox{
		MinLat: bound.Min[1],
		MinLng: bound.Min[0],
		MaxLat: bound.Max[1],
		MaxLng: bound.Max[0],
	}

	var data []byte
	switch layer {
	case tiles.TradesLayer:
		clusters, err := h.db.TradeClusters(c.Request.Context(), box, h.cfg.Limits.Max)
		if err != nil {
			h.logger.WithError(err).Error("Failed to query trade tile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render tile"})
			return
		}
		data, err = tiles.Encode(tiles.TradesLayer, z, x, y, tiles.TradeFeatures(clusters))
		if err != nil {
			h.tileEncodeError(c, err)
			return
		}
	case tiles.RentsLayer, "rent":
		rentType, err := query.ParseRentType(c.Query("rentType"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		clusters, err := h.db.RentClusters(c.Request.Context(), box, rentType, h.cfg.Limits.Max)
		if err != nil {
			h.logger.WithError(err).Error("Failed to query rent tile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render tile"})
			return
		}
		data, err = tiles.Encode(tiles.RentsLayer, z, x, y, tiles.RentFeatures(clusters))
		if err != nil {
			h.tileEncodeError(c, err)
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "layer must be trades|rents"})
		return
	}

	c.Header("Content-Encoding", "gzip")
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", h.cfg.Tiles.CacheSeconds))
	c.Data(http.StatusOK, mvtContentType, data)
}

func (h *Handler) tileEncodeError(c *gin.Context, err error) {
	if errors.Is(err, tiles.ErrEmpty) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Empty tile"})
		return
	}
	h.logger.WithError(err).Error("Failed to encode tile")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render tile"})
}

func (h *Handler) GetRecentTrades(c *gin.Context) {
	lawdCd := c.Query("lawdCd")
	aptNm := c.Query("aptNm")
	if lawdCd == "" || aptNm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lawdCd and aptNm are required"})
		return
	}

	params := database.DetailParams{
		LawdCd: lawdCd,
		AptNm:  aptNm,
		Jibun:  query.NewJibunFilter(c.Query("jibun")),
		Range:  query.NewDateRange(c.Query("fromYmd"), c.Query("toYmd"), h.cfg.Windows.RecentMonths),
		Limit:  h.clampLimit(c.Query("limit"), h.cfg.Limits.DetailDefault),
	}

	items, err := h.db.RecentTrades(c.Request.Context(), params)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recent trades")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recent trades"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": items})
}

func (h *Handler) GetRecentRents(c *gin.Context) {
	lawdCd := c.Query("lawdCd")
	aptNm := c.Query("aptNm")
	if lawdCd == "" || aptNm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lawdCd and aptNm are required"})
		return
	}
	rentType, err := query.ParseRentType(c.Query("rentType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := database.DetailParams{
		LawdCd: lawdCd,
		AptNm:  aptNm,
		Jibun:  query.NewJibunFilter(c.Query("jibun")),
		Range:  query.NewDateRange(c.Query("fromYmd"), c.Query("toYmd"), h.cfg.Windows.RecentMonths),
		Limit:  h.clampLimit(c.Query("limit"), h.cfg.Limits.DetailDefault),
	}

	items, err := h.db.RecentRents(c.Request.Context(), params, rentType)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recent rents")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recent rents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": items})
}

func (h *Handler) GetTradeSummary(c *gin.Context) {
	lawdCd := c.Query("lawdCd")
	aptNm := c.Query("aptNm")
	if lawdCd == "" || aptNm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lawdCd and aptNm are required"})
		return
	}

	summary, err := h.db.TradeSummary(c.Request.Context(), lawdCd, aptNm, query.NewJibunFilter(c.Query("jibun")))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get trade summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get trade summary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"apt":    summary.Apt,
		"last3m": summary.Last3M,
		"series": summary.Series,
	})
}

func (h *Handler) GetRentSummary(c *gin.Context) {
	lawdCd := c.Query("lawdCd")
	aptNm := c.Query("aptNm")
	if lawdCd == "" || aptNm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lawdCd and aptNm are required"})
		return
	}
	rentType, err := query.ParseRentType(c.Query("rentType"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.db.RentSummary(c.Request.Context(), lawdCd, aptNm, query.NewJibunFilter(c.Query("jibun")), rentType)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get rent summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get rent summary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"apt":    summary.Apt,
		"last3m": summary.Last3M,
		"series": summary.Series,
	})
}

func (h *Handler) GetTradePriceChart(c *gin.Context) {
	aptNm := c.Query("aptNm")
	if aptNm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "aptNm is required"})
		return
	}

	series, err := h.db.TradePriceSeries(c.Request.Context(), aptNm)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get price chart")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get price chart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "series": series})
}

func (h *Handler) GetJeonseChart(c *gin.Context) {
	h.rentChart(c, query.RentJeonse)
}

func (h *Handler) GetMonthlyChart(c *gin.Context) {
	h.rentChart(c, query.RentMonthly)
}

func (h *Handler) rentChart(c *gin.Context, rentType query.RentType) {
	aptNm := c.Query("aptNm")
	if aptNm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "aptNm is required"})
		return
	}

	series, err := h.db.RentChartSeries(c.Request.Context(), aptNm, rentType)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get rent chart")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get rent chart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "series": series})
}
