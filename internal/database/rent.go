package database

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"aptmap/server/internal/models"
	"aptmap/server/internal/query"
)

// RentClusters is the lease counterpart of TradeClusters. Deposit and
// monthly-rent ranges are aggregated separately; rows without a rent
// component count as zero rent.
func (d *Database) RentClusters(ctx context.Context, box BBox, rentType query.RentType, limit int) ([]models.RentCluster, error) {
	b := query.NewArgBinder()
	dateCond := query.NewDateRange("", "", d.recentMonths).SQL(b, dealDateExpr("r"))

	sql := fmt.Sprintf(`%s
		SELECT
			r.lawd_cd,
			rl.umd_nm,
			r.apt_nm,
			rl.lat,
			rl.lng,
			COUNT(*)::int AS rent_cnt,
			MIN(r.deposit_manwon)::int AS min_deposit,
			MAX(r.deposit_manwon)::int AS max_deposit,
			MIN(COALESCE(r.monthly_rent_manwon, 0))::int AS min_monthly_rent,
			MAX(COALESCE(r.monthly_rent_manwon, 0))::int AS max_monthly_rent,
			MAX(r.deal_ymd) AS last_deal_ymd
		FROM apt_trade_rent r
		JOIN rep_location rl
			ON r.lawd_cd = rl.lawd_cd
			AND r.apt_nm = rl.apt_nm
		WHERE
			rl.lat BETWEEN %s AND %s
			AND rl.lng BETWEEN %s AND %s
			AND %s
			AND %s
		GROUP BY r.lawd_cd, rl.umd_nm, r.apt_nm, rl.lat, rl.lng
		ORDER BY MAX(%s) DESC NULLS LAST
		LIMIT %s`,
		repLocationCTE,
		b.Bind(box.MinLat), b.Bind(box.MaxLat),
		b.Bind(box.MinLng), b.Bind(box.MaxLng),
		dateCond,
		rentType.SQL("r.monthly_rent_manwon"),
		dealDateExpr("r"),
		b.Bind(limit),
	)

	rows, err := d.pool.Query(ctx, sql, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("query rent clusters: %w", err)
	}
	defer rows.Close()

	clusters := []models.RentCluster{}
	for rows.Next() {
		var c models.RentCluster
		var umdNm, lastYmd *string
		if err := rows.Scan(&c.LawdCd, &umdNm, &c.AptNm, &c.Lat, &c.Lng,
			&c.RentCnt, &c.MinDeposit, &c.MaxDeposit,
			&c.MinMonthlyRent, &c.MaxMonthlyRent, &lastYmd); err != nil {
			return nil, fmt.Errorf("scan rent cluster: %w", err)
		}
		c.LawdCd = strings.TrimSpace(c.LawdCd)
		c.AptNm = strings.TrimSpace(c.AptNm)
		c.UmdNm = trimmed(umdNm)
		c.LastDealYmd = trimmed(lastYmd)
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rent clusters: %w", err)
	}
	return clusters, nil
}

// RecentRents lists the matching lease transactions for one complex.
// The optional exclu_use_ar/floor columns are probed once per process;
// deployments without them get explicit NULLs instead of a failed
// request.
func (d *Database) RecentRents(ctx context.Context, p DetailParams, rentType query.RentType) ([]models.RentRow, error) {
	cols, err := d.rentDetailColumns(ctx)
	if err != nil {
		return nil, err
	}

	excluSelect := "r.exclu_use_ar"
	if !cols.hasExcluUseAr {
		excluSelect = "NULL::numeric AS exclu_use_ar"
	}
	floorSelect := "r.floor"
	if !cols.hasFloor {
		floorSelect = "NULL::int AS floor"
	}

	b := query.NewArgBinder()
	conds := []string{
		"r.lawd_cd = " + b.Bind(p.LawdCd),
		"r.apt_nm = " + b.Bind(p.AptNm),
		p.Jibun.SQL(b, "r.jibun"),
		rentType.SQL("r.monthly_rent_manwon"),
		p.Range.SQL(b, dealDateExpr("r")),
	}

	sql := fmt.Sprintf(`
		SELECT
			r.id::text AS id,
			r.deal_ymd,
			r.deposit_manwon,
			r.monthly_rent_manwon,
			%s,
			%s
		FROM apt_trade_rent r
		WHERE %s
		ORDER BY (%s) DESC NULLS LAST, r.deal_ymd DESC
		LIMIT %s`,
		excluSelect,
		floorSelect,
		strings.Join(conds, " AND "),
		dealDateExpr("r"),
		b.Bind(p.Limit),
	)

	rows, err := d.pool.Query(ctx, sql, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("query recent rents: %w", err)
	}
	defer rows.Close()

	items := []models.RentRow{}
	for rows.Next() {
		var r models.RentRow
		var dealYmd *string
		if err := rows.Scan(&r.ID, &dealYmd, &r.DepositManwon,
			&r.MonthlyRentManwon, &r.ExcluUseAr, &r.Floor); err != nil {
			return nil, fmt.Errorf("scan recent rent: %w", err)
		}
		r.DealYmd = trimmed(dealYmd)
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent rents: %w", err)
	}
	return items, nil
}

// RentSummary resolves complex info, trailing-window deposit/rent
// averages, and the monthly series for one complex, with the rent-type
// filter applied throughout. Sub-queries run concurrently; a complex
// with no lease rows yields a zeroed summary and an empty series.
func (d *Database) RentSummary(ctx context.Context, lawdCd, aptNm string, jibun query.JibunFilter, rentType query.RentType) (*models.RentSummary, error) {
	summary := &models.RentSummary{
		Apt: models.AptInfo{
			LawdCd: lawdCd,
			AptNm:  aptNm,
			Jibun:  jibun.Value(),
		},
		Series: []models.RentPoint{},
	}

	typeCond := rentType.SQL("r.monthly_rent_manwon")
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b := query.NewArgBinder()
		sql := fmt.Sprintf(`
			SELECT r.lawd_cd, COALESCE(MAX(r.umd_nm), '') AS umd_nm, r.apt_nm
			FROM apt_trade_rent r
			WHERE r.lawd_cd = %s AND r.apt_nm = %s AND %s AND %s
			GROUP BY r.lawd_cd, r.apt_nm
			LIMIT 1`,
			b.Bind(lawdCd), b.Bind(aptNm), jibun.SQL(b, "r.jibun"), typeCond)

		var info models.AptInfo
		err := d.pool.QueryRow(ctx, sql, b.Args()...).Scan(&info.LawdCd, &info.UmdNm, &info.AptNm)
		if err != nil {
			if isNoRows(err) {
				return nil
			}
			return fmt.Errorf("query rent apt info: %w", err)
		}
		summary.Apt.LawdCd = strings.TrimSpace(info.LawdCd)
		summary.Apt.UmdNm = strings.TrimSpace(info.UmdNm)
		summary.Apt.AptNm = strings.TrimSpace(info.AptNm)
		return nil
	})

	g.Go(func() error {
		b := query.NewArgBinder()
		dateCond := query.NewDateRange("", "", d.recentMonths).SQL(b, dealDateExpr("r"))
		sql := fmt.Sprintf(`
			SELECT
				COALESCE(ROUND(AVG(r.deposit_manwon))::int, 0) AS avg_deposit,
				COALESCE(ROUND(AVG(r.monthly_rent_manwon))::int, 0) AS avg_monthly,
				COUNT(*)::int AS cnt
			FROM apt_trade_rent r
			WHERE r.lawd_cd = %s AND r.apt_nm = %s AND %s AND %s AND %s`,
			b.Bind(lawdCd), b.Bind(aptNm), jibun.SQL(b, "r.jibun"), dateCond, typeCond)

		err := d.pool.QueryRow(ctx, sql, b.Args()...).Scan(
			&summary.Last3M.AvgDeposit, &summary.Last3M.AvgMonthly, &summary.Last3M.Cnt)
		if err != nil {
			return fmt.Errorf("query rent last3m: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		b := query.NewArgBinder()
		expr := dealDateExpr("r")
		sql := fmt.Sprintf(`
			SELECT
				to_char(date_trunc('month', (%[1]s)), 'YYYYMM') AS ym,
				ROUND(AVG(r.deposit_manwon))::int AS avg_deposit,
				ROUND(AVG(r.monthly_rent_manwon))::int AS avg_monthly,
				COUNT(*)::int AS cnt
			FROM apt_trade_rent r
			WHERE r.lawd_cd = %[2]s AND r.apt_nm = %[3]s AND %[4]s
				AND (%[1]s) >= (date_trunc('month', CURRENT_DATE) - make_interval(months => %[5]s))
				AND (%[1]s) IS NOT NULL
				AND %[6]s
			GROUP BY ym
			ORDER BY ym ASC`,
			expr, b.Bind(lawdCd), b.Bind(aptNm), jibun.SQL(b, "r.jibun"),
			b.Bind(d.seriesMonths), typeCond)

		rows, err := d.pool.Query(ctx, sql, b.Args()...)
		if err != nil {
			return fmt.Errorf("query rent series: %w", err)
		}
		defer rows.Close()

		series := []models.RentPoint{}
		for rows.Next() {
			var p models.RentPoint
			var avgDeposit, avgMonthly *int
			if err := rows.Scan(&p.Ym, &avgDeposit, &avgMonthly, &p.Cnt); err != nil {
				return fmt.Errorf("scan rent series point: %w", err)
			}
			if avgDeposit != nil {
				p.AvgDeposit = *avgDeposit
			}
			if avgMonthly != nil {
				p.AvgMonthly = *avgMonthly
			}
			series = append(series, p)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate rent series: %w", err)
		}
		summary.Series = series
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

// RentChartSeries returns the full monthly series for a complex name on
// the lease side: average deposit for jeonse charts, average monthly
// rent for monthly charts.
func (d *Database) RentChartSeries(ctx context.Context, aptNm string, rentType query.RentType) ([]models.TradePoint, error) {
	priceCol := "r.deposit_manwon"
	if rentType == query.RentMonthly {
		priceCol = "COALESCE(r.monthly_rent_manwon, 0)"
	}

	expr := dealDateExpr("r")
	sql := fmt.Sprintf(`
		SELECT
			to_char(date_trunc('month', (%[1]s)), 'YYYYMM') AS ym,
			ROUND(AVG(%[2]s))::int AS avg_price,
			COUNT(*)::int AS cnt
		FROM apt_trade_rent r
		WHERE r.apt_nm = $1
			AND (%[1]s) IS NOT NULL
			AND %[3]s
		GROUP BY ym
		ORDER BY ym ASC`,
		expr, priceCol, rentType.SQL("r.monthly_rent_manwon"))

	rows, err := d.pool.Query(ctx, sql, aptNm)
	if err != nil {
		return nil, fmt.Errorf("query rent chart series: %w", err)
	}
	defer rows.Close()

	series := []models.TradePoint{}
	for rows.Next() {
		var p models.TradePoint
		var avgPrice *int
		// a month whose rows all carry NULL prices averages to NULL
		if err := rows.Scan(&p.Ym, &avgPrice, &p.Cnt); err != nil {
			return nil, fmt.Errorf("scan rent chart point: %w", err)
		}
		if avgPrice != nil {
			p.AvgPrice = *avgPrice
		}
		series = append(series, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rent chart series: %w", err)
	}
	return series, nil
}
