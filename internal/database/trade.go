package database

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"aptmap/server/internal/models"
	"aptmap/server/internal/query"
)

// TradeClusters groups the sale transactions inside box (inclusive) and
// the trailing recent window by complex, one row per complex at its
// representative coordinate, newest activity first.
func (d *Database) TradeClusters(ctx context.Context, box BBox, limit int) ([]models.TradeCluster, error) {
	b := query.NewArgBinder()
	dateCond := query.NewDateRange("", "", d.recentMonths).SQL(b, dealDateExpr("t"))

	sql := fmt.Sprintf(`%s
		SELECT
			t.lawd_cd,
			rl.umd_nm,
			t.apt_nm,
			rl.lat,
			rl.lng,
			COUNT(*)::int AS trade_cnt,
			MIN(t.deal_amount_manwon)::int AS min_price,
			MAX(t.deal_amount_manwon)::int AS max_price,
			MAX(t.deal_ymd) AS last_trade_ymd
		FROM apt_trade t
		JOIN rep_location rl
			ON t.lawd_cd = rl.lawd_cd
			AND t.apt_nm = rl.apt_nm
		WHERE
			rl.lat BETWEEN %s AND %s
			AND rl.lng BETWEEN %s AND %s
			AND %s
		GROUP BY t.lawd_cd, rl.umd_nm, t.apt_nm, rl.lat, rl.lng
		ORDER BY MAX(%s) DESC NULLS LAST
		LIMIT %s`,
		repLocationCTE,
		b.Bind(box.MinLat), b.Bind(box.MaxLat),
		b.Bind(box.MinLng), b.Bind(box.MaxLng),
		dateCond,
		dealDateExpr("t"),
		b.Bind(limit),
	)

	rows, err := d.pool.Query(ctx, sql, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("query trade clusters: %w", err)
	}
	defer rows.Close()

	clusters := []models.TradeCluster{}
	for rows.Next() {
		var c models.TradeCluster
		var umdNm, lastYmd *string
		if err := rows.Scan(&c.LawdCd, &umdNm, &c.AptNm, &c.Lat, &c.Lng,
			&c.TradeCnt, &c.MinPrice, &c.MaxPrice, &lastYmd); err != nil {
			return nil, fmt.Errorf("scan trade cluster: %w", err)
		}
		c.LawdCd = strings.TrimSpace(c.LawdCd)
		c.AptNm = strings.TrimSpace(c.AptNm)
		c.UmdNm = trimmed(umdNm)
		c.LastTradeYmd = trimmed(lastYmd)
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade clusters: %w", err)
	}
	return clusters, nil
}

// DetailParams identify one complex plus the optional list filters.
type DetailParams struct {
	LawdCd string
	AptNm  string
	Jibun  query.JibunFilter
	Range  query.DateRange
	Limit  int
}

// RecentTrades lists the matching sale transactions for one complex,
// newest first (rows with an unparseable deal date sort last).
func (d *Database) RecentTrades(ctx context.Context, p DetailParams) ([]models.TradeRow, error) {
	b := query.NewArgBinder()
	conds := []string{
		"t.lawd_cd = " + b.Bind(p.LawdCd),
		"t.apt_nm = " + b.Bind(p.AptNm),
		p.Jibun.SQL(b, "t.jibun"),
		p.Range.SQL(b, dealDateExpr("t")),
	}

	sql := fmt.Sprintf(`
		SELECT
			t.id::text AS id,
			t.deal_ymd,
			t.deal_amount_manwon,
			t.exclu_use_ar,
			t.floor,
			NULLIF(btrim(t.apt_dong::text), '') AS deal_dong,
			NULLIF(btrim(t.rgst_date::text), '') AS rgst_date
		FROM apt_trade t
		WHERE %s
		ORDER BY (%s) DESC NULLS LAST, t.deal_ymd DESC
		LIMIT %s`,
		strings.Join(conds, " AND "),
		dealDateExpr("t"),
		b.Bind(p.Limit),
	)

	rows, err := d.pool.Query(ctx, sql, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	defer rows.Close()

	items := []models.TradeRow{}
	for rows.Next() {
		var r models.TradeRow
		var dealYmd, rgstDate *string
		if err := rows.Scan(&r.ID, &dealYmd, &r.AmountManwon, &r.ExcluUseAr,
			&r.Floor, &r.DealDong, &rgstDate); err != nil {
			return nil, fmt.Errorf("scan recent trade: %w", err)
		}
		r.DealYmd = trimmed(dealYmd)
		// A present registration date confirms the deal is registered.
		// An empty marker stays nil (unconfirmed), not false.
		if trimmed(rgstDate) != "" {
			registered := true
			r.IsRegistered = &registered
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent trades: %w", err)
	}
	return items, nil
}

// TradeSummary resolves the complex display info, the trailing-window
// averages, and the monthly series with three independent sub-queries
// issued concurrently. A complex with no matching rows still yields a
// zero-filled summary, never an error.
func (d *Database) TradeSummary(ctx context.Context, lawdCd, aptNm string, jibun query.JibunFilter) (*models.TradeSummary, error) {
	summary := &models.TradeSummary{
		Apt: models.AptInfo{
			LawdCd: lawdCd,
			AptNm:  aptNm,
			Jibun:  jibun.Value(),
		},
		Series: []models.TradePoint{},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b := query.NewArgBinder()
		sql := fmt.Sprintf(`
			SELECT t.lawd_cd, COALESCE(MAX(t.umd_nm), '') AS umd_nm, t.apt_nm
			FROM apt_trade t
			WHERE t.lawd_cd = %s AND t.apt_nm = %s AND %s
			GROUP BY t.lawd_cd, t.apt_nm
			LIMIT 1`,
			b.Bind(lawdCd), b.Bind(aptNm), jibun.SQL(b, "t.jibun"))

		var info models.AptInfo
		err := d.pool.QueryRow(ctx, sql, b.Args()...).Scan(&info.LawdCd, &info.UmdNm, &info.AptNm)
		if err != nil {
			if isNoRows(err) {
				return nil
			}
			return fmt.Errorf("query trade apt info: %w", err)
		}
		summary.Apt.LawdCd = strings.TrimSpace(info.LawdCd)
		summary.Apt.UmdNm = strings.TrimSpace(info.UmdNm)
		summary.Apt.AptNm = strings.TrimSpace(info.AptNm)
		return nil
	})

	g.Go(func() error {
		b := query.NewArgBinder()
		dateCond := query.NewDateRange("", "", d.recentMonths).SQL(b, dealDateExpr("t"))
		sql := fmt.Sprintf(`
			SELECT
				COALESCE(ROUND(AVG(t.deal_amount_manwon))::int, 0) AS avg_price,
				COUNT(*)::int AS cnt
			FROM apt_trade t
			WHERE t.lawd_cd = %s AND t.apt_nm = %s AND %s AND %s`,
			b.Bind(lawdCd), b.Bind(aptNm), jibun.SQL(b, "t.jibun"), dateCond)

		err := d.pool.QueryRow(ctx, sql, b.Args()...).Scan(&summary.Last3M.AvgPrice, &summary.Last3M.Cnt)
		if err != nil {
			return fmt.Errorf("query trade last3m: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		b := query.NewArgBinder()
		expr := dealDateExpr("t")
		sql := fmt.Sprintf(`
			SELECT
				to_char(date_trunc('month', (%[1]s)), 'YYYYMM') AS ym,
				ROUND(AVG(t.deal_amount_manwon))::int AS avg_price,
				COUNT(*)::int AS cnt
			FROM apt_trade t
			WHERE t.lawd_cd = %[2]s AND t.apt_nm = %[3]s AND %[4]s
				AND (%[1]s) >= (date_trunc('month', CURRENT_DATE) - make_interval(months => %[5]s))
				AND (%[1]s) IS NOT NULL
			GROUP BY ym
			ORDER BY ym ASC`,
			expr, b.Bind(lawdCd), b.Bind(aptNm), jibun.SQL(b, "t.jibun"), b.Bind(d.seriesMonths))

		rows, err := d.pool.Query(ctx, sql, b.Args()...)
		if err != nil {
			return fmt.Errorf("query trade series: %w", err)
		}
		defer rows.Close()

		series := []models.TradePoint{}
		for rows.Next() {
			var p models.TradePoint
			if err := rows.Scan(&p.Ym, &p.AvgPrice, &p.Cnt); err != nil {
				return fmt.Errorf("scan trade series point: %w", err)
			}
			series = append(series, p)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate trade series: %w", err)
		}
		summary.Series = series
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

// TradePriceSeries returns the full monthly average price series for a
// complex name, used by the price chart.
func (d *Database) TradePriceSeries(ctx context.Context, aptNm string) ([]models.TradePoint, error) {
	sql := `
		SELECT
			deal_year,
			deal_month,
			ROUND(AVG(deal_amount_manwon))::int AS avg_price,
			COUNT(*)::int AS cnt
		FROM apt_trade
		WHERE apt_nm = $1
			AND deal_year IS NOT NULL
			AND deal_month IS NOT NULL
		GROUP BY deal_year, deal_month
		ORDER BY deal_year, deal_month`

	rows, err := d.pool.Query(ctx, sql, aptNm)
	if err != nil {
		return nil, fmt.Errorf("query trade price series: %w", err)
	}
	defer rows.Close()

	series := []models.TradePoint{}
	for rows.Next() {
		var year, month int
		var avgPrice *int
		var p models.TradePoint
		if err := rows.Scan(&year, &month, &avgPrice, &p.Cnt); err != nil {
			return nil, fmt.Errorf("scan trade price point: %w", err)
		}
		if avgPrice != nil {
			p.AvgPrice = *avgPrice
		}
		p.Ym = fmt.Sprintf("%d%02d", year, month)
		series = append(series, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade price series: %w", err)
	}
	return series, nil
}
