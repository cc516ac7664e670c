// Command client runs a trading client process: it connects to the
// exchange's order channel, joins its market-data multicast group, and
// drives one configured strategy (market-maker or liquidity-taker)
// against a single ticker through the trading engine.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/clock"
	"lowlatency-exchange/internal/xlog"
	"lowlatency-exchange/trading"
	"lowlatency-exchange/trading/risk"
	"lowlatency-exchange/trading/strategy"
)

type config struct {
	host            string
	port            int
	multicastAddr   string
	multicastPort   int
	strategyName    string
	ticker          uint
	clientId        uint
	maxOrderQty     uint
	maxPosition     int64
	maxLoss         int64
	halfSpread      int64
	signalThreshold float64
	logFile         string
}

func defaultConfig() config {
	return config{
		host:            "127.0.0.1",
		port:            7000,
		multicastAddr:   "239.255.0.1",
		multicastPort:   7001,
		strategyName:    "market-maker",
		ticker:          1,
		clientId:        1,
		maxOrderQty:     500,
		maxPosition:     1000,
		maxLoss:         100000,
		halfSpread:      50,
		signalThreshold: 0.3,
	}
}

func parseFlags() config {
	cfg := defaultConfig()
	flag.StringVar(&cfg.host, "host", cfg.host, "exchange order channel host")
	flag.IntVar(&cfg.port, "port", cfg.port, "exchange order channel port")
	flag.StringVar(&cfg.multicastAddr, "multicast_addr", cfg.multicastAddr, "market-data multicast group address")
	flag.IntVar(&cfg.multicastPort, "multicast_port", cfg.multicastPort, "market-data multicast group port")
	flag.StringVar(&cfg.strategyName, "strategy", cfg.strategyName, "strategy to run: market-maker or liquidity-taker")
	flag.UintVar(&cfg.ticker, "ticker", cfg.ticker, "ticker id to trade")
	flag.UintVar(&cfg.clientId, "client_id", cfg.clientId, "client id to authenticate as")
	flag.UintVar(&cfg.maxOrderQty, "max_order_qty", cfg.maxOrderQty, "per-order quantity cap")
	flag.Int64Var(&cfg.maxPosition, "max_position", cfg.maxPosition, "absolute position cap")
	flag.Int64Var(&cfg.maxLoss, "max_loss", cfg.maxLoss, "maximum tolerated loss before rejecting new orders")
	flag.Int64Var(&cfg.halfSpread, "half_spread", cfg.halfSpread, "market-maker half spread in price ticks")
	flag.Float64Var(&cfg.signalThreshold, "signal_threshold", cfg.signalThreshold, "liquidity-taker symmetric trade-signal threshold")
	flag.StringVar(&cfg.logFile, "logfile", cfg.logFile, "rotating log file path (stderr if unset)")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	tickerId := domain.TickerId(cfg.ticker)
	clientId := domain.ClientId(cfg.clientId)

	var log *xlog.Logger
	if cfg.logFile != "" {
		log = xlog.NewFile(cfg.logFile, xlog.Info)
	} else {
		sink, _ := zap.NewProduction()
		log = xlog.New(sink, xlog.Info)
	}
	defer log.Close()

	orderAddr := fmt.Sprintf("%s:%d", cfg.host, cfg.port)
	gw, err := trading.Connect(orderAddr, clientId)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to connect order channel:", err)
		os.Exit(1)
	}
	defer gw.Close()

	multicastAddr := fmt.Sprintf("%s:%d", cfg.multicastAddr, cfg.multicastPort)
	md, err := trading.JoinMarketData(multicastAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to join market data:", err)
		os.Exit(1)
	}
	defer md.Close()
	md.Reserve([]domain.TickerId{tickerId})

	engineCfg := trading.DefaultEngineConfig(clientId)
	engineCfg.Tickers = []domain.TickerId{tickerId}
	engine := trading.NewEngine(engineCfg, gw)
	engine.RiskManager().SetLimits(tickerId, risk.Limits{
		MaxOrderQty:   domain.Qty(cfg.maxOrderQty),
		MaxPosition:   cfg.maxPosition,
		MaxLoss:       cfg.maxLoss,
		MaxOpenOrders: 100,
	})
	engine.Start()

	var runMarketMaker func()
	var runLiquidityTaker func()

	switch cfg.strategyName {
	case "market-maker":
		mmCfg := strategy.DefaultMarketMakerConfig(tickerId)
		mmCfg.HalfSpread = domain.Price(cfg.halfSpread)
		mm := strategy.NewMarketMaker(mmCfg)
		runMarketMaker = func() {
			if f, ok := engine.Features(tickerId); ok {
				if pos, found := engine.Position(tickerId); found {
					mm.SetPosition(pos.Net)
				}
				engine.ProcessStrategyAction(mm.OnFeatures(f))
			}
		}
	case "liquidity-taker":
		ltCfg := strategy.DefaultLiquidityTakerConfig(tickerId).WithSymmetricThreshold(cfg.signalThreshold)
		ltCfg.MaxPosition = cfg.maxPosition
		lt := strategy.NewLiquidityTaker(ltCfg)
		runLiquidityTaker = func() {
			if f, ok := engine.Features(tickerId); ok {
				if pos, found := engine.Position(tickerId); found {
					lt.SetPosition(pos.Net)
				}
				engine.ProcessStrategyAction(lt.OnFeaturesSimple(f, clock.Now()))
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown strategy %q: must be market-maker or liquidity-taker\n", cfg.strategyName)
		os.Exit(1)
	}

	fmt.Printf("client %d connected to %s, trading ticker %d with %s\n", cfg.clientId, orderAddr, cfg.ticker, cfg.strategyName)
	log.InfoU64("client started for ticker", uint64(tickerId))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println("shutting down")
			engine.CancelAllOrders(tickerId)
			log.Flush()
			return
		case <-ticker.C:
			updates := md.PollAll()
			responses, _ := gw.Poll()
			engine.RunCycle(responses, updates)

			if runMarketMaker != nil {
				runMarketMaker()
			}
			if runLiquidityTaker != nil {
				runLiquidityTaker()
			}
		}
	}
}
