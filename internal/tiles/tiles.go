// Package tiles turns cluster aggregates into Mapbox vector tiles so
// the map client can fetch only the features visible at its current
// zoom/pan state.
package tiles

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"aptmap/server/internal/models"
)

const (
	// Extent is the tile-local coordinate space, the MVT default.
	Extent = 4096

	// Buffer (in extent units) widens the queried envelope so features
	// just outside the tile edge still render across the seam.
	Buffer = 256

	// TradesLayer and RentsLayer name the single layer each tile carries.
	TradesLayer = "trades"
	RentsLayer  = "rents"
)

// ErrEmpty reports a tile with zero features. It is a normal outcome,
// not a server failure; the HTTP layer maps it to a not-found response.
var ErrEmpty = errors.New("empty tile")

// Valid reports whether z/x/y address an actual tile. The column/row
// must fall inside the 2^z grid.
func Valid(z, x, y, maxZoom int) bool {
	if z < 0 || z > maxZoom {
		return false
	}
	if x < 0 || y < 0 {
		return false
	}
	n := 1 << uint(z)
	return x < n && y < n
}

// Bound returns the geographic envelope of the tile, widened by the
// edge buffer.
func Bound(z, x, y int) orb.Bound {
	t := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
	return t.Bound(float64(Buffer) / float64(Extent))
}

// TradeFeatures builds one point feature per sale cluster.
func TradeFeatures(clusters []models.TradeCluster) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range clusters {
		f := geojson.NewFeature(orb.Point{c.Lng, c.Lat})
		f.Properties = geojson.Properties{
			"lawdCd":       c.LawdCd,
			"umdNm":        c.UmdNm,
			"aptNm":        c.AptNm,
			"tradeCnt":     c.TradeCnt,
			"minPrice":     c.MinPrice,
			"maxPrice":     c.MaxPrice,
			"lastTradeYmd": c.LastTradeYmd,
		}
		fc.Append(f)
	}
	return fc
}

// RentFeatures builds one point feature per lease cluster.
func RentFeatures(clusters []models.RentCluster) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range clusters {
		f := geojson.NewFeature(orb.Point{c.Lng, c.Lat})
		f.Properties = geojson.Properties{
			"lawdCd":         c.LawdCd,
			"umdNm":          c.UmdNm,
			"aptNm":          c.AptNm,
			"rentCnt":        c.RentCnt,
			"minDeposit":     c.MinDeposit,
			"maxDeposit":     c.MaxDeposit,
			"minMonthlyRent": c.MinMonthlyRent,
			"maxMonthlyRent": c.MaxMonthlyRent,
			"lastDealYmd":    c.LastDealYmd,
		}
		fc.Append(f)
	}
	return fc
}

// Encode projects the features into the tile's local coordinate space
// and serializes them as a single-layer gzipped vector tile. Returns
// ErrEmpty when there is nothing to draw.
func Encode(layerName string, z, x, y int, fc *geojson.FeatureCollection) ([]byte, error) {
	if len(fc.Features) == 0 {
		return nil, ErrEmpty
	}

	layer := mvt.NewLayer(layerName, fc)
	layer.Version = 2
	layer.Extent = Extent

	layers := mvt.Layers{layer}
	layers.ProjectToTile(maptile.New(uint32(x), uint32(y), maptile.Zoom(z)))

	data, err := mvt.MarshalGzipped(layers)
	if err != nil {
		return nil, fmt.Errorf("marshal tile %d/%d/%d: %w", z, x, y, err)
	}
	return data, nil
}
