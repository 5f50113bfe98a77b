// Package report computes the dashboard aggregates: cashflow totals, the
// daily balance series and the weekly treasury report.
package report

import (
	"sort"
	"time"

	"github.com/rumor-ml/commons.systems/treasury/internal/domain"
)

// Cashflow totals inflows and outflows over a set of transactions
type Cashflow struct {
	Inflows  float64 `json:"inflows"`
	Outflows float64 `json:"outflows"` // negative
	Net      float64 `json:"net"`
}

// ComputeCashflow sums a transaction set. Outflows keep their negative
// sign, so Net = Inflows + Outflows.
func ComputeCashflow(txns []*domain.Transaction) Cashflow {
	var cf Cashflow
	for _, txn := range txns {
		if txn.Amount >= 0 {
			cf.Inflows += txn.Amount
		} else {
			cf.Outflows += txn.Amount
		}
	}
	cf.Net = cf.Inflows + cf.Outflows
	return cf
}

// DailyBalance is one point of the cumulative balance series
type DailyBalance struct {
	Date       string  `json:"date"`
	Net        float64 `json:"net"`
	Cumulative float64 `json:"cumulative"`
}

// BalanceSeries nets transactions per calendar date and accumulates them
// in date order. Dates use the YYYY-MM-DD layout, so string order is date
// order.
func BalanceSeries(txns []*domain.Transaction) []DailyBalance {
	byDate := make(map[string]float64)
	for _, txn := range txns {
		byDate[txn.Date] += txn.Amount
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	series := make([]DailyBalance, 0, len(dates))
	var running float64
	for _, date := range dates {
		running += byDate[date]
		series = append(series, DailyBalance{
			Date:       date,
			Net:        byDate[date],
			Cumulative: running,
		})
	}
	return series
}

// WeeklyReport covers the seven calendar days ending on End, inclusive
type WeeklyReport struct {
	Start               string  `json:"start"`
	End                 string  `json:"end"`
	OpeningBalance      float64 `json:"opening_balance"`
	Inflows             float64 `json:"inflows"`
	Outflows            float64 `json:"outflows"`
	Net                 float64 `json:"net"`
	ClosingBalance      float64 `json:"closing_balance"`
	LiquidationInflows  float64 `json:"liquidation_inflows"`
	LiquidationOutflows float64 `json:"liquidation_outflows"`
	TransactionCount    int     `json:"transaction_count"`
}

// Weekly builds the report for the seven days ending on weekEnding. The
// opening balance is the cumulative net of everything before the window,
// and liquidation movements are totaled separately.
func Weekly(txns []*domain.Transaction, weekEnding time.Time) *WeeklyReport {
	end := weekEnding.Format(domain.DateLayout)
	start := weekEnding.AddDate(0, 0, -6).Format(domain.DateLayout)

	rep := &WeeklyReport{Start: start, End: end}

	for _, txn := range txns {
		switch {
		case txn.Date < start:
			rep.OpeningBalance += txn.Amount
		case txn.Date > end:
			continue
		default:
			rep.TransactionCount++
			if txn.Amount >= 0 {
				rep.Inflows += txn.Amount
				if txn.Liquidation {
					rep.LiquidationInflows += txn.Amount
				}
			} else {
				rep.Outflows += txn.Amount
				if txn.Liquidation {
					rep.LiquidationOutflows += txn.Amount
				}
			}
		}
	}

	rep.Net = rep.Inflows + rep.Outflows
	rep.ClosingBalance = rep.OpeningBalance + rep.Net
	return rep
}
