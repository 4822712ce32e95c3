// Package dto defines the session provider's native records as they are held
// in the adapter's local view.
//
// Values are kept as decoded from the wire (json.Number, string, nil) so that
// the normalizer alone decides how to sanitize them.
package dto

// Kline is one bar of a subscribed chart.
// Datetime is nanoseconds since the epoch.
type Kline struct {
	ID       int64
	Datetime any
	Open     any
	High     any
	Low      any
	Close    any
	Volume   any
	OpenOI   any
	CloseOI  any
}

// Quote is the provider's quote object for one contract.
// Datetime is a "2006-01-02 15:04:05.000000" string in exchange time.
type Quote struct {
	Contract string

	Datetime        any
	LastPrice       any
	Volume          any
	Amount          any
	OpenInterest    any
	Open            any
	Highest         any
	Lowest          any
	Close           any
	Average         any
	Settlement      any
	PreSettlement   any
	PreClose        any
	PreOpenInterest any
	UpperLimit      any
	LowerLimit      any
	InstrumentName  any
	PriceTick       any
	VolumeMultiple  any

	BidPrice  [5]any
	BidVolume [5]any
	AskPrice  [5]any
	AskVolume [5]any
}
