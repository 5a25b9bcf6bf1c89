package data

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xhit/go-str2duration/v2"
)

// ConvertIntervalToMinutes converts interval strings like "5m", "1h", "1d" to a minute count.
// Plain numbers and unparseable values are returned unchanged.
func ConvertIntervalToMinutes(interval string) string {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if _, err := strconv.Atoi(interval); err == nil {
		return interval
	}
	d, err := str2duration.ParseDuration(interval)
	if err != nil || d.Minutes() < 1 {
		return interval
	}
	return strconv.Itoa(int(d.Minutes()))
}

// FindDataFile looks for data/{exchange}/{category}/{SYMBOL}/{minutes}/candles.csv and
// returns the first existing path, or "" with the attempted paths.
func FindDataFile(dataRoot, exchange, symbol, interval string) (string, []string) {
	symbol = strings.ToUpper(symbol)
	intervalMinutes := ConvertIntervalToMinutes(interval)

	var categories []string
	switch strings.ToLower(exchange) {
	case "bybit":
		categories = []string{"spot", "linear", "inverse"}
	case "binance":
		categories = []string{"spot", "futures"}
	default:
		categories = []string{"spot", "futures", "linear", "inverse"}
	}

	var attempted []string
	for _, category := range categories {
		path := filepath.Join(dataRoot, exchange, category, symbol, intervalMinutes, "candles.csv")
		attempted = append(attempted, path)
		if _, err := os.Stat(path); err == nil {
			return path, attempted
		}
	}
	return "", attempted
}
