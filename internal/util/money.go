package util

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders an amount in major units with the currency symbol,
// e.g. 21.5 GBP as "£21.50".
func FormatMoney(amount float64, currency string) string {
	if currency == "" {
		currency = money.GBP
	}
	cents := decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
	return money.New(cents, currency).Display()
}
