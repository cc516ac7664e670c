// Command benchmark drives one matching engine at saturation to
// measure order and fill throughput, bypassing the TCP session layer
// entirely: producers push wire.ClientRequest values straight onto the
// engine's ingress queue, the same path the order server's dispatch
// loop uses.
package main

import (
	"flag"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/xlog"
	"lowlatency-exchange/matching"
	"lowlatency-exchange/wire"
)

func main() {
	duration := flag.Duration("duration", 5*time.Second, "benchmark duration")
	bookCapacity := flag.Int("book-capacity", 1<<20, "resting order capacity")
	flag.Parse()

	sink, _ := zap.NewProduction()
	log := xlog.New(sink, xlog.Warn)
	defer log.Close()

	engine := matching.New(domain.TickerId(1), *bookCapacity, log)

	var shutdown atomic.Bool
	go engine.Run(&shutdown)

	numCPU := runtime.NumCPU()
	numWorkers := numCPU - 2
	if numWorkers < 1 {
		numWorkers = 1
	}

	var orderCount atomic.Int64
	var fillCount atomic.Int64

	// The ingress queue is single-producer, so the producers take turns.
	var ingressMu sync.Mutex

	go func() {
		for {
			env, ok := engine.Responses.Pop()
			if !ok {
				runtime.Gosched()
				continue
			}
			if env.Response.MsgType == domain.ResponseFilled {
				fillCount.Add(1)
			}
		}
	}()

	go func() {
		for {
			if _, ok := engine.Updates.Pop(); !ok {
				runtime.Gosched()
			}
		}
	}()

	fmt.Println("=== matching engine throughput benchmark ===")
	fmt.Printf("cpu cores:   %d\n", numCPU)
	fmt.Printf("producers:   %d\n", numWorkers)
	fmt.Printf("duration:    %v\n\n", *duration)

	start := time.Now()
	stop := make(chan struct{})

	for w := 0; w < numWorkers; w++ {
		go func(workerID int) {
			clientId := domain.ClientId(workerID + 1)
			var orderId domain.OrderId
			for {
				select {
				case <-stop:
					return
				default:
				}
				orderId++
				var side domain.Side
				var price domain.Price
				if orderId%2 == 0 {
					side = domain.Buy
					price = 50000 + domain.Price(orderId%200)
				} else {
					side = domain.Sell
					price = 50000 + domain.Price(orderId%200)
				}
				req := wire.ClientRequest{
					MsgType:  domain.RequestNew,
					ClientId: clientId,
					TickerId: 1,
					OrderId:  orderId,
					Side:     side,
					Price:    price,
					Qty:      1,
				}
				ingressMu.Lock()
				for !engine.Ingress.Push(req) {
					runtime.Gosched()
				}
				ingressMu.Unlock()
				orderCount.Add(1)
			}
		}(w)
	}

	ticker := time.NewTicker(time.Second)
	tickerDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				elapsed := time.Since(start)
				orders := orderCount.Load()
				fills := fillCount.Load()
				fmt.Printf("[%.0fs] orders: %d (%.0f/s) | fills: %d (%.0f/s)\n",
					elapsed.Seconds(), orders, float64(orders)/elapsed.Seconds(),
					fills, float64(fills)/elapsed.Seconds())
			case <-tickerDone:
				return
			}
		}
	}()

	time.Sleep(*duration)
	close(stop)
	ticker.Stop()
	close(tickerDone)
	time.Sleep(200 * time.Millisecond)
	shutdown.Store(true)

	elapsed := time.Since(start)
	totalOrders := orderCount.Load()
	totalFills := fillCount.Load()
	qps := float64(totalOrders) / elapsed.Seconds()
	fps := float64(totalFills) / elapsed.Seconds()

	fmt.Println("\n=== results ===")
	fmt.Printf("elapsed:          %v\n", elapsed)
	fmt.Printf("total orders:     %d\n", totalOrders)
	fmt.Printf("total fills:      %d\n", totalFills)
	fmt.Printf("order throughput: %.0f orders/sec\n", qps)
	fmt.Printf("fill throughput:  %.0f fills/sec\n", fps)

	book := engine.Book()
	bbo := book.BBO()
	fmt.Println("\n=== book state ===")
	fmt.Printf("best bid: %d\n", bbo.BidPrice)
	fmt.Printf("best ask: %d\n", bbo.AskPrice)

	bids, asks := book.Depth(5)
	fmt.Println("\nbid depth (top 5):")
	for i, level := range bids {
		fmt.Printf("  %d. price=%d qty=%d\n", i+1, level.Price, level.AggregateQty)
	}
	fmt.Println("\nask depth (top 5):")
	for i, level := range asks {
		fmt.Printf("  %d. price=%d qty=%d\n", i+1, level.Price, level.AggregateQty)
	}
}
