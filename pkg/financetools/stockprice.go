package financetools

import (
	"context"
	"fmt"
	"sort"

	"github.com/germanamz/finassist/pkg/tools/toolbox"
)

var stockPriceSpec = Spec{
	Name:        "get_stock_price",
	Function:    "TIME_SERIES_INTRADAY",
	Description: "Get the latest intraday close price for a stock symbol",
	Symbol:      SymbolRequired,
	Params: []Param{{
		Name:    "interval",
		Type:    "string",
		Enum:    []string{"1min", "5min", "15min", "30min", "60min"},
		Default: "5min",
	}},
}

// StockPrice is the reduced intraday series returned by get_stock_price.
type StockPrice struct {
	Symbol      string `json:"symbol"`
	LatestTime  string `json:"latest_time"`
	LatestClose string `json:"latest_close"`
}

func stockPriceTool(f Fetcher) (toolbox.Tool, error) {
	schema, err := stockPriceSpec.Schema()
	if err != nil {
		return toolbox.Tool{}, err
	}

	fetch := seriesHandler(stockPriceSpec, f)

	return toolbox.Tool{
		Name:        stockPriceSpec.Name,
		Description: stockPriceSpec.Description,
		InputSchema: schema,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			raw, err := fetch(ctx, args)
			if err != nil {
				return nil, err
			}

			data, _ := raw.(map[string]any)
			symbol, _ := symbolArg(SymbolRequired, args)
			interval, _ := args["interval"].(string)
			if interval == "" {
				interval = "5min"
			}

			return latestClose(data, symbol, interval)
		},
	}, nil
}

// latestClose picks the most recent bar of "Time Series (<interval>)".
// Timestamps are "YYYY-MM-DD HH:MM:SS", so lexical order is chronological.
func latestClose(data map[string]any, symbol, interval string) (StockPrice, error) {
	series, _ := data[fmt.Sprintf("Time Series (%s)", interval)].(map[string]any)
	if len(series) == 0 {
		return StockPrice{}, fmt.Errorf("no intraday data found for %s", symbol)
	}

	times := make([]string, 0, len(series))
	for ts := range series {
		times = append(times, ts)
	}
	sort.Strings(times)

	latest := times[len(times)-1]
	bar, _ := series[latest].(map[string]any)
	closePrice, _ := bar["4. close"].(string)

	return StockPrice{
		Symbol:      symbol,
		LatestTime:  latest,
		LatestClose: closePrice,
	}, nil
}
