package types

import "time"

type OHLCV struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Series is a column view of a window, the layout talib functions expect
type Series struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// ToSeries splits candles into parallel float slices
func ToSeries(data []OHLCV) Series {
	s := Series{
		Open:   make([]float64, len(data)),
		High:   make([]float64, len(data)),
		Low:    make([]float64, len(data)),
		Close:  make([]float64, len(data)),
		Volume: make([]float64, len(data)),
	}
	for i, c := range data {
		s.Open[i] = c.Open
		s.High[i] = c.High
		s.Low[i] = c.Low
		s.Close[i] = c.Close
		s.Volume[i] = c.Volume
	}
	return s
}
