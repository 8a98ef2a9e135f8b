package feed

import (
	"fmt"
	"math"
	"time"

	"github.com/predeshen/telegramscalperbot-sub000/internal/model"
)

// formingState holds the in-progress candle for one (symbol, timeframe)
// pair.
type formingState struct {
	bucket  int64
	candle  model.Candle
	started bool
}

// Resampler incrementally rolls base-interval candles up into higher
// timeframes. Each incoming candle updates every enabled timeframe in
// O(1); when a candle lands in a new bucket the previous bucket is
// finalized and handed to OnCandle. Single consumer, not goroutine-safe.
type Resampler struct {
	tfs    []model.Timeframe
	states []map[string]*formingState

	// StaleTolerance rejects candles that lag the forming bucket by more
	// than this. 0 disables the check.
	StaleTolerance time.Duration

	// OnCandle receives each finalized candle.
	OnCandle func(symbol string, tf model.Timeframe, c model.Candle)
	// OnStale is called when a late candle is dropped (optional).
	OnStale func()
}

// NewResampler creates a resampler for the given target timeframes.
func NewResampler(tfs []model.Timeframe) *Resampler {
	states := make([]map[string]*formingState, len(tfs))
	for i := range states {
		states[i] = make(map[string]*formingState, 16)
	}
	return &Resampler{
		tfs:            tfs,
		states:         states,
		StaleTolerance: 2 * time.Second,
	}
}

// Add merges one base candle into every enabled timeframe.
func (r *Resampler) Add(symbol string, c model.Candle) {
	ts := c.TS.Unix()
	for i, tf := range r.tfs {
		sec := tf.Seconds()
		if sec <= 0 {
			continue
		}
		bucket := ts - ts%sec

		st, exists := r.states[i][symbol]

		if r.StaleTolerance > 0 && exists && bucket < st.bucket {
			lag := time.Duration(st.bucket-bucket) * time.Second
			if lag > r.StaleTolerance {
				if r.OnStale != nil {
					r.OnStale()
				}
				continue
			}
		}

		if exists && bucket > st.bucket {
			// New bucket closes the forming candle.
			r.finalize(symbol, tf, st)
			exists = false
		}

		if !exists {
			r.states[i][symbol] = &formingState{
				bucket:  bucket,
				started: true,
				candle: model.Candle{
					TS:     time.Unix(bucket, 0).UTC(),
					Open:   c.Open,
					High:   c.High,
					Low:    c.Low,
					Close:  c.Close,
					Volume: c.Volume,
				},
			}
			continue
		}

		// Same bucket, merge OHLCV.
		fc := &st.candle
		if c.High > fc.High {
			fc.High = c.High
		}
		if c.Low < fc.Low {
			fc.Low = c.Low
		}
		fc.Close = c.Close
		fc.Volume += c.Volume
	}
}

// Flush finalizes and emits every forming candle. Call on shutdown or
// before a full recompute.
func (r *Resampler) Flush() {
	for i, tf := range r.tfs {
		for symbol, st := range r.states[i] {
			if st.started {
				r.finalize(symbol, tf, st)
			}
			delete(r.states[i], symbol)
		}
	}
}

func (r *Resampler) finalize(symbol string, tf model.Timeframe, st *formingState) {
	if r.OnCandle != nil {
		r.OnCandle(symbol, tf, st.candle)
	}
	st.started = false
}

// Resample rolls a completed base series up into one target timeframe.
// The last bucket is included even if the base data does not cover it
// fully. Used when a source only serves the base interval.
func Resample(s *model.Series, tf model.Timeframe) (*model.Series, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	sec := tf.Seconds()
	base := s.Timeframe.Seconds()
	if sec <= 0 || base <= 0 {
		return nil, fmt.Errorf("resample: bad timeframe %q", tf)
	}
	if sec < base {
		return nil, fmt.Errorf("resample: target %s below source %s", tf, s.Timeframe)
	}

	out := make([]model.Candle, 0, len(s.Candles)*int(base)/int(sec)+1)
	var cur model.Candle
	curBucket := int64(math.MinInt64)
	open := false

	for _, c := range s.Candles {
		ts := c.TS.Unix()
		bucket := ts - ts%sec
		if bucket != curBucket {
			if open {
				out = append(out, cur)
			}
			curBucket = bucket
			cur = model.Candle{
				TS:     time.Unix(bucket, 0).UTC(),
				Open:   c.Open,
				High:   c.High,
				Low:    c.Low,
				Close:  c.Close,
				Volume: c.Volume,
			}
			open = true
			continue
		}
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	if open {
		out = append(out, cur)
	}

	return &model.Series{Symbol: s.Symbol, Timeframe: tf, Candles: out}, nil
}
