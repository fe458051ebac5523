package runner

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Shape selects how session starts are spread over ramp-up.
type Shape string

const (
	// ShapeConstant waits the mean interval before every session.
	ShapeConstant Shape = "constant"
	// ShapeTriangular accelerates towards the middle of ramp-up and slows
	// down again, peaking at one session per mean interval.
	ShapeTriangular Shape = "triangular"
)

// ParseShape converts a user supplied name. Empty means constant.
func ParseShape(value string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(value))) {
	case "", ShapeConstant:
		return ShapeConstant, nil
	case ShapeTriangular:
		return ShapeTriangular, nil
	default:
		return "", fmt.Errorf("unknown arrival shape %q (expected constant or triangular)", value)
	}
}

// ArrivalDelay returns how long to wait before starting session index
// (1-based) out of total.
//
// For the triangular shape the start rate grows linearly from 1/11 of the peak
// rate to the peak (one session per mean) at index total/2 and falls back
// symmetrically:
//
//	range = index/peak               if index < peak
//	      = (total-index)/(total-peak) otherwise
//	delay = mean * 1.1 / (range + 0.1)
//
// With mean 200ms and total 20, index 1 waits 1100ms, index 10 waits 200ms and
// index 20 waits 2200ms.
func ArrivalDelay(mean time.Duration, index, total int, shape Shape) time.Duration {
	if mean <= 0 {
		return 0
	}
	if shape != ShapeTriangular || total <= 0 {
		return mean
	}

	meanMs := float64(mean) / float64(time.Millisecond)
	peakRate := 1000 / meanMs
	peakIndex := total / 2

	var rangePct float64
	if index < peakIndex {
		rangePct = float64(index) / float64(peakIndex)
	} else {
		rangePct = float64(total-index) / float64(total-peakIndex)
	}

	speed := (rangePct + 0.1) / 1.1
	delayMs := 1000 / (speed * peakRate)
	return time.Duration(math.Round(delayMs * float64(time.Millisecond)))
}
