// Command lowlatency-exchange is a minimal in-process walkthrough of
// the matching engine: it submits a resting sell and a marketable buy
// against it and prints the responses produced, without any network
// layer. The exchange and client processes proper live under
// cmd/exchange and cmd/client.
package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"lowlatency-exchange/domain"
	"lowlatency-exchange/internal/xlog"
	"lowlatency-exchange/matching"
	"lowlatency-exchange/wire"
)

func main() {
	sink, _ := zap.NewDevelopment()
	log := xlog.New(sink, xlog.Info)
	defer log.Close()

	engine := matching.New(domain.TickerId(1), 1024, log)

	var shutdown atomic.Bool
	go engine.Run(&shutdown)
	defer shutdown.Store(true)

	fmt.Println("matching engine started for ticker 1")

	go func() {
		time.Sleep(100 * time.Millisecond)

		sell := wire.ClientRequest{
			MsgType: domain.RequestNew, ClientId: 1, TickerId: 1,
			OrderId: 1, Side: domain.Sell, Price: 50000, Qty: 100,
		}
		engine.Ingress.Push(sell)
		fmt.Println("submitted sell order: 100 @ 50000")

		buy := wire.ClientRequest{
			MsgType: domain.RequestNew, ClientId: 2, TickerId: 1,
			OrderId: 1, Side: domain.Buy, Price: 50000, Qty: 50,
		}
		engine.Ingress.Push(buy)
		fmt.Println("submitted buy order: 50 @ 50000")

		time.Sleep(100 * time.Millisecond)

		for {
			env, ok := engine.Responses.Pop()
			if !ok {
				break
			}
			r := env.Response
			fmt.Printf("response: client=%d type=%v side=%v price=%d exec_qty=%d leaves_qty=%d\n",
				env.ClientId, r.MsgType, r.Side, r.Price, r.ExecQty, r.LeavesQty)
		}
		for {
			if _, ok := engine.Updates.Pop(); !ok {
				break
			}
		}
	}()

	time.Sleep(500 * time.Millisecond)
}
