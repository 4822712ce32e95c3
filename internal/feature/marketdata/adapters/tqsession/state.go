package tqsession

import (
	"fmt"
	"slices"
	"strconv"
	"sync"

	"quote_backend/internal/feature/marketdata/adapters/tqsession/dto"
)

// state はサーバーから届いた差分（rtn_data）を畳み込んだローカルビューです。
//
// ルートの形:
//
//	quotes.<contract>.<field>
//	klines.<contract>.<duration ns>.data.<id>.<field>
//
// 差分の値が null のキーは削除されます。
type state struct {
	mu       sync.RWMutex
	root     map[string]any
	updated  chan struct{} // 次の merge で close される
	klineCap int
}

func newState(klineCap int) *state {
	return &state{
		root:     make(map[string]any),
		updated:  make(chan struct{}),
		klineCap: klineCap,
	}
}

// apply は差分を順に畳み込み、待機中の WaitForUpdate を起こします。
func (st *state) apply(diffs []map[string]any) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, d := range diffs {
		merge(st.root, d)
	}
	st.prune()

	close(st.updated)
	st.updated = make(chan struct{})
}

// changed は次の apply で close されるチャネルを返します。
func (st *state) changed() <-chan struct{} {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.updated
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		sm, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		dm, ok := dst[k].(map[string]any)
		if !ok {
			dm = make(map[string]any, len(sm))
			dst[k] = dm
		}
		merge(dm, sm)
	}
}

// prune は各K線系列を新しい方から klineCap 本に切り詰めます。
func (st *state) prune() {
	if st.klineCap <= 0 {
		return
	}
	klines, _ := st.root["klines"].(map[string]any)
	for _, byDur := range klines {
		durs, _ := byDur.(map[string]any)
		for _, series := range durs {
			s, _ := series.(map[string]any)
			data, _ := s["data"].(map[string]any)
			if len(data) <= st.klineCap {
				continue
			}
			ids := sortedIDs(data)
			for _, id := range ids[:len(ids)-st.klineCap] {
				delete(data, strconv.FormatInt(id, 10))
			}
		}
	}
}

// klines は contract / duration の系列を id 昇順で最大 length 本返します。
func (st *state) klines(contract string, durationNs int64, length int) []dto.Kline {
	st.mu.RLock()
	defer st.mu.RUnlock()

	data, _ := lookup(st.root, "klines", contract, strconv.FormatInt(durationNs, 10), "data").(map[string]any)
	if len(data) == 0 {
		return nil
	}
	ids := sortedIDs(data)
	if length > 0 && len(ids) > length {
		ids = ids[len(ids)-length:]
	}

	out := make([]dto.Kline, 0, len(ids))
	for _, id := range ids {
		bar, _ := data[strconv.FormatInt(id, 10)].(map[string]any)
		if bar == nil {
			continue
		}
		out = append(out, dto.Kline{
			ID:       id,
			Datetime: bar["datetime"],
			Open:     bar["open"],
			High:     bar["high"],
			Low:      bar["low"],
			Close:    bar["close"],
			Volume:   bar["volume"],
			OpenOI:   bar["open_oi"],
			CloseOI:  bar["close_oi"],
		})
	}
	return out
}

// quote は contract の気配を返します。datetime がまだ届いていなければ false です。
func (st *state) quote(contract string) (dto.Quote, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	m, _ := lookup(st.root, "quotes", contract).(map[string]any)
	if m == nil {
		return dto.Quote{}, false
	}
	if dt, _ := m["datetime"].(string); dt == "" {
		return dto.Quote{}, false
	}

	q := dto.Quote{
		Contract:        contract,
		Datetime:        m["datetime"],
		LastPrice:       m["last_price"],
		Volume:          m["volume"],
		Amount:          m["amount"],
		OpenInterest:    m["open_interest"],
		Open:            m["open"],
		Highest:         m["highest"],
		Lowest:          m["lowest"],
		Close:           m["close"],
		Average:         m["average"],
		Settlement:      m["settlement"],
		PreSettlement:   m["pre_settlement"],
		PreClose:        m["pre_close"],
		PreOpenInterest: m["pre_open_interest"],
		UpperLimit:      m["upper_limit"],
		LowerLimit:      m["lower_limit"],
		InstrumentName:  m["instrument_name"],
		PriceTick:       m["price_tick"],
		VolumeMultiple:  m["volume_multiple"],
	}
	for i := range 5 {
		n := i + 1
		q.BidPrice[i] = m[fmt.Sprintf("bid_price%d", n)]
		q.BidVolume[i] = m[fmt.Sprintf("bid_volume%d", n)]
		q.AskPrice[i] = m[fmt.Sprintf("ask_price%d", n)]
		q.AskVolume[i] = m[fmt.Sprintf("ask_volume%d", n)]
	}
	return q, true
}

func lookup(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[p]
	}
	return cur
}

// sortedIDs は数値として解釈できるキーを昇順で返します。
func sortedIDs(data map[string]any) []int64 {
	ids := make([]int64, 0, len(data))
	for k := range data {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
