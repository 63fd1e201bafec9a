package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fincept/gateway/internal/domain"
	"github.com/fincept/gateway/internal/router"
)

var (
	routeSymbol    string
	routeExchange  string
	routeSide      string
	routeType      string
	routeQuantity  int64
	routePrice     string
	routeTrigger   string
	routeProduct   string
	routeValidity  string
	routeStrategy  string
	routeBrokers   string
	routeFallback  string
	routeTag       string
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Place a single order through the Order Router",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := buildApp(ctx)
		requireNoError(err)

		order := domain.OrderInput{
			Symbol:   routeSymbol,
			Exchange: domain.Exchange(strings.ToUpper(routeExchange)),
			Side:     domain.Side(strings.ToUpper(routeSide)),
			Type:     domain.OrderType(strings.ToUpper(routeType)),
			Quantity: routeQuantity,
			Product:  domain.Product(strings.ToUpper(routeProduct)),
			Validity: domain.Validity(strings.ToUpper(routeValidity)),
			Tag:      routeTag,
		}
		if routePrice != "" {
			order.Price, err = decimal.NewFromString(routePrice)
			requireNoErrorMsg(err, "parse --price")
		}
		if routeTrigger != "" {
			order.TriggerPrice, err = decimal.NewFromString(routeTrigger)
			requireNoErrorMsg(err, "parse --trigger-price")
		}

		strategy := domain.RoutingStrategy(strings.ToUpper(routeStrategy))
		if strategy == "" {
			strategy = router.SmartRoute(order)
		}

		var brokers []string
		if routeBrokers != "" {
			brokers = strings.Split(routeBrokers, ",")
		}

		cfg := router.RouteConfig{Strategy: strategy, Brokers: brokers, FallbackBroker: routeFallback}
		res, err := a.router.Route(ctx, order, cfg)
		requireNoError(err)

		printJSON(res)
	},
}

func printJSON[T any](val T) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(val)
}

func init() {
	routeCmd.Flags().StringVar(&routeSymbol, "symbol", "", "instrument symbol (required)")
	routeCmd.Flags().StringVar(&routeExchange, "exchange", "", "exchange code (required)")
	routeCmd.Flags().StringVar(&routeSide, "side", "BUY", "BUY or SELL")
	routeCmd.Flags().StringVar(&routeType, "type", "MARKET", "order type")
	routeCmd.Flags().Int64Var(&routeQuantity, "quantity", 0, "order quantity (required)")
	routeCmd.Flags().StringVar(&routePrice, "price", "", "limit price")
	routeCmd.Flags().StringVar(&routeTrigger, "trigger-price", "", "stop trigger price")
	routeCmd.Flags().StringVar(&routeProduct, "product", "CASH", "product variant")
	routeCmd.Flags().StringVar(&routeValidity, "validity", "DAY", "time in force")
	routeCmd.Flags().StringVar(&routeStrategy, "strategy", "", "PARALLEL|BEST_PRICE|BEST_LATENCY|ROUND_ROBIN (default: smart route)")
	routeCmd.Flags().StringVar(&routeBrokers, "brokers", "", "comma-separated broker ids to restrict fan-out to")
	routeCmd.Flags().StringVar(&routeFallback, "fallback", "", "fallback broker id for BEST_PRICE/BEST_LATENCY")
	routeCmd.Flags().StringVar(&routeTag, "tag", "", "client order tag")
	requireField(routeCmd, "symbol")
	requireField(routeCmd, "exchange")
	requireField(routeCmd, "quantity")
}

func requireField(cmd *cobra.Command, name string) {
	_ = cmd.MarkFlagRequired(name)
}
