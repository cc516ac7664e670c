// Command exchange runs the exchange process: an order server
// accepting trading-client TCP connections, one matching engine per
// configured ticker, a response writer fanning responses back to
// sessions, and a publisher multicasting market data.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/gateway"
	"lowlatency-exchange/internal/xlog"
	"lowlatency-exchange/matching"
)

// config is the exchange process's CLI surface, defaults applied
// before flags override them.
type config struct {
	port          int
	multicastAddr string
	multicastPort int
	tickers       string
	bookCapacity  int
	logFile       string
}

func defaultConfig() config {
	return config{
		port:          7000,
		multicastAddr: "239.255.0.1",
		multicastPort: 7001,
		tickers:       "1",
		bookCapacity:  1 << 16,
	}
}

func parseFlags() config {
	cfg := defaultConfig()
	flag.IntVar(&cfg.port, "port", cfg.port, "TCP port the order server listens on")
	flag.StringVar(&cfg.multicastAddr, "multicast_addr", cfg.multicastAddr, "market-data multicast group address")
	flag.IntVar(&cfg.multicastPort, "multicast_port", cfg.multicastPort, "market-data multicast group port")
	flag.StringVar(&cfg.tickers, "tickers", cfg.tickers, "comma-separated ticker ids to register at startup")
	flag.IntVar(&cfg.bookCapacity, "book_capacity", cfg.bookCapacity, "resting order capacity per order book")
	flag.StringVar(&cfg.logFile, "logfile", cfg.logFile, "rotating log file path (stderr if unset)")
	flag.Parse()
	return cfg
}

func parseTickers(csv string) ([]domain.TickerId, error) {
	var ids []domain.TickerId
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid ticker id %q: %w", tok, err)
		}
		ids = append(ids, domain.TickerId(n))
	}
	return ids, nil
}

func main() {
	cfg := parseFlags()

	tickers, err := parseTickers(cfg.tickers)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var log *xlog.Logger
	if cfg.logFile != "" {
		log = xlog.NewFile(cfg.logFile, xlog.Info)
	} else {
		sink, _ := zap.NewProduction()
		log = xlog.New(sink, xlog.Info)
	}
	defer log.Close()

	var shutdown atomic.Bool
	exchange := matching.NewExchange(cfg.bookCapacity, log, &shutdown)
	for _, t := range tickers {
		exchange.RegisterTicker(t)
	}

	server, err := gateway.NewOrderServer(fmt.Sprintf(":%d", cfg.port), exchange, log, &shutdown)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start order server:", err)
		os.Exit(1)
	}

	writer := gateway.NewResponseWriter(exchange, server, log, &shutdown)

	multicastAddr := fmt.Sprintf("%s:%d", cfg.multicastAddr, cfg.multicastPort)
	publisher, err := gateway.NewPublisher(multicastAddr, exchange, log, &shutdown)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start publisher:", err)
		os.Exit(1)
	}

	go server.Accept()
	go server.Run()
	go writer.Run()
	go publisher.Run()

	log.Info("exchange started")
	fmt.Printf("exchange listening on %s, publishing market data to %s, tickers=%v\n",
		server.Addr(), multicastAddr, tickers)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("shutting down")
	shutdown.Store(true)
	_ = server.Close()
	_ = publisher.Close()
	log.Flush()
}
