package domain

// Trade describes one execution between an aggressor and a resting
// order. It is a plain value, not pool-backed: trades are built once
// per match and immediately turned into a ClientResponse/MarketUpdate
// pair, never retained.
type Trade struct {
	TickerId      TickerId
	Price         Price
	Qty           Qty
	AggressorSide Side

	AggressorOrderId OrderId
	AggressorClient  ClientId
	AggressorLeaves  Qty

	RestingMarketOrderId OrderId
	RestingClientOrderId OrderId
	RestingClient        ClientId
	RestingPriority      Priority
	RestingLeaves        Qty
}
