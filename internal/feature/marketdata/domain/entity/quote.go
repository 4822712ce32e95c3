package entity

// MaxBookDepth is the deepest book level either upstream publishes.
const MaxBookDepth = 5

// BookLevel is a single price level of the order book.
type BookLevel struct {
	Price  float64
	Volume float64
}

// Quote is the latest trade and book snapshot of an instrument.
// Optional fields that the upstream does not publish are zero values.
type Quote struct {
	Instrument string
	LastPrice  float64
	Volume     float64
	EventTime  int64 // ms epoch

	Bids []BookLevel // best first, at most MaxBookDepth
	Asks []BookLevel // best first, at most MaxBookDepth

	Amount          float64
	OpenInterest    float64
	Open            float64
	Highest         float64
	Lowest          float64
	Close           float64
	Average         float64
	SettlementPrice float64
	PreSettlement   float64
	PreClose        float64
	PreOpenInterest float64
	UpperLimit      float64
	LowerLimit      float64
	InstrumentName  string
	PriceTick       float64
	VolumeMultiple  float64

	Change        float64 // LastPrice - PreSettlement
	ChangePercent float64 // Change / PreSettlement * 100
}

// Trade is the latest trade print of an instrument.
type Trade struct {
	Instrument string
	Price      float64
	Volume     float64
	TickTime   int64 // ms epoch
}
