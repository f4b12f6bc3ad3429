package rates

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount precision: coin amounts carry 8 decimal places, USD amounts 2.
const (
	coinPlaces = 8
	usdPlaces  = 2
)

// UsdToCoin converts a USD amount into coins at the given coins-per-USD
// rate, rounded to 8 decimal places.
func UsdToCoin(usd, rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsZero() || rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid rate %s", rate)
	}
	return usd.Mul(rate).Round(coinPlaces), nil
}

// CoinToUsd converts a coin amount into USD at the given coins-per-USD
// rate, rounded to 2 decimal places.
func CoinToUsd(coin, rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsZero() || rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid rate %s", rate)
	}
	return coin.Div(rate).Round(usdPlaces), nil
}

// FormatCoin renders a coin amount with its full 8 decimal places.
func FormatCoin(amount decimal.Decimal) string {
	return amount.StringFixed(coinPlaces)
}

// FormatUsd renders a USD amount with two decimal places and a dollar sign.
func FormatUsd(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(usdPlaces)
}
