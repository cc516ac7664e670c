// Command profile captures a CPU profile of the matching engine under
// the same synthetic load the benchmark command generates, so the hot
// path can be inspected with `go tool pprof`.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
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
	outPath := flag.String("out", "cpu.prof", "CPU profile output path")
	duration := flag.Duration("duration", 10*time.Second, "profiling duration")
	flag.Parse()

	cpuFile, err := os.Create(*outPath)
	if err != nil {
		panic(err)
	}
	defer cpuFile.Close()

	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		panic(err)
	}
	defer pprof.StopCPUProfile()

	fmt.Println("=== profiling matching engine ===")
	fmt.Printf("writing CPU profile to %s\n", *outPath)

	sink, _ := zap.NewProduction()
	log := xlog.New(sink, xlog.Warn)
	defer log.Close()

	engine := matching.New(domain.TickerId(1), 1<<20, log)

	var shutdown atomic.Bool
	go engine.Run(&shutdown)
	defer shutdown.Store(true)

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
				if orderId%2 == 0 {
					side = domain.Buy
				} else {
					side = domain.Sell
				}
				price := domain.Price(50000 + int64(orderId%200))
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

	time.Sleep(*duration)
	close(stop)
	time.Sleep(500 * time.Millisecond)

	elapsed := time.Since(start)
	totalOrders := orderCount.Load()
	totalFills := fillCount.Load()

	fmt.Println("\n=== results ===")
	fmt.Printf("total orders: %d\n", totalOrders)
	fmt.Printf("total fills:  %d\n", totalFills)
	fmt.Printf("order qps:    %.0f orders/sec\n", float64(totalOrders)/elapsed.Seconds())
	fmt.Printf("fill tps:     %.0f fills/sec\n", float64(totalFills)/elapsed.Seconds())

	fmt.Println("\nanalyze with:")
	fmt.Println("  go tool pprof -http=:8080 " + *outPath)
}
