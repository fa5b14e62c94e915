package financetools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/germanamz/finassist/pkg/tools/toolbox"
)

// Fetcher issues one series request. *alphavantage.Client satisfies it.
type Fetcher interface {
	Request(ctx context.Context, function, symbol string, params url.Values) (map[string]any, error)
}

// Tools builds one registry tool per catalog entry, plus get_stock_price.
func Tools(cat Catalog, f Fetcher) ([]toolbox.Tool, error) {
	tools := make([]toolbox.Tool, 0, len(cat)+1)

	price, err := stockPriceTool(f)
	if err != nil {
		return nil, err
	}
	tools = append(tools, price)

	for _, spec := range cat {
		schema, err := spec.Schema()
		if err != nil {
			return nil, err
		}

		tools = append(tools, toolbox.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: schema,
			Handler:     seriesHandler(spec, f),
		})
	}

	return tools, nil
}

// Register loads the embedded catalog and registers its tools in tb.
func Register(tb *toolbox.ToolBox, f Fetcher) error {
	cat, err := LoadCatalog()
	if err != nil {
		return err
	}

	tools, err := Tools(cat, f)
	if err != nil {
		return err
	}

	return tb.Register(tools...)
}

// seriesHandler binds a catalog entry to the fetcher: it normalizes the
// symbol, fills in declared defaults, and passes the rest through.
func seriesHandler(spec Spec, f Fetcher) toolbox.Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		symbol, err := symbolArg(spec.Symbol, args)
		if err != nil {
			return nil, err
		}

		params, err := buildParams(spec.Params, args)
		if err != nil {
			return nil, err
		}

		return f.Request(ctx, spec.Function, symbol, params)
	}
}

func symbolArg(mode SymbolMode, args map[string]any) (string, error) {
	if mode == SymbolNone {
		return "", nil
	}

	raw, _ := args["symbol"].(string)
	symbol := strings.ToUpper(strings.TrimSpace(raw))

	if symbol == "" && mode == SymbolRequired {
		return "", errors.New("symbol is required")
	}

	return symbol, nil
}

func buildParams(specs []Param, args map[string]any) (url.Values, error) {
	params := url.Values{}

	for _, p := range specs {
		v, ok := args[p.Name]
		if !ok || v == nil {
			v = p.Default
		}

		if v == nil {
			if p.Required {
				return nil, fmt.Errorf("%s is required", p.Name)
			}
			continue
		}

		s, err := formatValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}

		if p.Upper {
			s = strings.ToUpper(strings.TrimSpace(s))
		}

		if s == "" && p.Required {
			return nil, fmt.Errorf("%s is required", p.Name)
		}

		params.Set(p.QueryKey(), s)
	}

	return params, nil
}

// formatValue renders an argument for the query string. JSON numbers arrive
// as float64; whole values are sent without a fractional part.
func formatValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10), nil
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
