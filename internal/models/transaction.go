package models

// TradeCluster is one apartment complex aggregated over the sale
// transactions inside a spatial/temporal window, positioned at its
// representative coordinate.
type TradeCluster struct {
	LawdCd       string  `json:"lawdCd"`
	UmdNm        string  `json:"umdNm"`
	AptNm        string  `json:"aptNm"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	TradeCnt     int     `json:"tradeCnt"`
	MinPrice     int     `json:"minPrice"`
	MaxPrice     int     `json:"maxPrice"`
	LastTradeYmd string  `json:"lastTradeYmd"`
}

// RentCluster is the lease counterpart, with separate deposit and
// monthly-rent ranges.
type RentCluster struct {
	LawdCd         string  `json:"lawdCd"`
	UmdNm          string  `json:"umdNm"`
	AptNm          string  `json:"aptNm"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	RentCnt        int     `json:"rentCnt"`
	MinDeposit     int     `json:"minDeposit"`
	MaxDeposit     int     `json:"maxDeposit"`
	MinMonthlyRent int     `json:"minMonthlyRent"`
	MaxMonthlyRent int     `json:"maxMonthlyRent"`
	LastDealYmd    string  `json:"lastDealYmd"`
}

// TradeRow is one sale transaction rendered for list display.
// IsRegistered stays nil when the registration-date marker is empty:
// an empty marker means "unconfirmed", not "unregistered".
type TradeRow struct {
	ID           string   `json:"id"`
	DealYmd      string   `json:"dealYmd"`
	AmountManwon *int     `json:"amountManwon"`
	ExcluUseAr   *float64 `json:"excluUseAr"`
	Floor        *int     `json:"floor"`
	DealDong     *string  `json:"dealDong"`
	IsRegistered *bool    `json:"isRegistered"`
}

// RentRow is one lease transaction for list display. ExcluUseAr and
// Floor are nil when the deployment's store lacks those columns.
type RentRow struct {
	ID                string   `json:"id"`
	DealYmd           string   `json:"dealYmd"`
	DepositManwon     *int     `json:"depositManwon"`
	MonthlyRentManwon *int     `json:"monthlyRentManwon"`
	ExcluUseAr        *float64 `json:"excluUseAr"`
	Floor             *int     `json:"floor"`
}

// AptInfo is the resolved display identity of one complex. When no row
// matches, the caller-supplied values are echoed back.
type AptInfo struct {
	LawdCd string `json:"lawdCd"`
	UmdNm  string `json:"umdNm"`
	AptNm  string `json:"aptNm"`
	Jibun  string `json:"jibun"`
}

type TradeLast3M struct {
	AvgPrice int `json:"avgPrice"`
	Cnt      int `json:"cnt"`
}

type RentLast3M struct {
	AvgDeposit int `json:"avgDeposit"`
	AvgMonthly int `json:"avgMonthly"`
	Cnt        int `json:"cnt"`
}

// TradePoint is one month of the sale summary series.
type TradePoint struct {
	Ym       string `json:"ym"`
	AvgPrice int    `json:"avgPrice"`
	Cnt      int    `json:"cnt"`
}

// RentPoint is one month of the lease summary series.
type RentPoint struct {
	Ym         string `json:"ym"`
	AvgDeposit int    `json:"avgDeposit"`
	AvgMonthly int    `json:"avgMonthly"`
	Cnt        int    `json:"cnt"`
}

// TradeSummary bundles the three summary sub-query results.
type TradeSummary struct {
	Apt    AptInfo      `json:"apt"`
	Last3M TradeLast3M  `json:"last3m"`
	Series []TradePoint `json:"series"`
}

type RentSummary struct {
	Apt    AptInfo     `json:"apt"`
	Last3M RentLast3M  `json:"last3m"`
	Series []RentPoint `json:"series"`
}
