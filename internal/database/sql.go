package database

import "fmt"

// repLocationCTE picks exactly one coordinate per (lawd_cd, apt_nm):
// the lowest-id location record with non-null coordinates. The explicit
// ORDER BY makes the pick deterministic even when duplicate geocoding
// observations exist; complexes without any usable coordinate drop out
// of spatial queries entirely.
const repLocationCTE = `WITH rep_location AS (
	SELECT DISTINCT ON (lawd_cd, apt_nm)
		lawd_cd, apt_nm, umd_nm, lat, lng
	FROM apt_location
	WHERE lat IS NOT NULL AND lng IS NOT NULL
	ORDER BY lawd_cd, apt_nm, id
)`

// dealDateExpr normalizes the free-text deal_ymd column of the aliased
// table: 8 digits as YYYYMMDD, 6 digits as YYYYMM (day 1), anything
// else NULL.
func dealDateExpr(alias string) string {
	return fmt.Sprintf(`CASE
		WHEN length(%[1]s.deal_ymd) = 8 THEN to_date(%[1]s.deal_ymd, 'YYYYMMDD')
		WHEN length(%[1]s.deal_ymd) = 6 THEN to_date(%[1]s.deal_ymd || '01', 'YYYYMMDD')
		ELSE NULL
	END`, alias)
}
