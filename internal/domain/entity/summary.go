package entity

import "github.com/shopspring/decimal"

// Summary holds the balances derived from a list of transactions.
// It is never persisted.
type Summary struct {
	NetBalance  float64 `json:"netBalance"`
	Receivables float64 `json:"receivables"`
	Payables    float64 `json:"payables"`
	Count       int     `json:"count"`
}

// Summarize computes receivables (credits), payables (debits) and their
// difference. Sums are taken in decimal so the result does not depend on the
// order of the list.
func Summarize(txs []*Transaction) Summary {
	credit := decimal.Zero
	debit := decimal.Zero
	count := 0

	for _, tx := range txs {
		if tx == nil {
			continue
		}
		count++
		amount := decimal.NewFromFloat(tx.Amount)
		switch tx.Type {
		case Credit:
			credit = credit.Add(amount)
		case Debit:
			debit = debit.Add(amount)
		}
	}

	return Summary{
		NetBalance:  credit.Sub(debit).InexactFloat64(),
		Receivables: credit.InexactFloat64(),
		Payables:    debit.InexactFloat64(),
		Count:       count,
	}
}
