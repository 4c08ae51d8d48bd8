package store

import (
	"fmt"
	"strings"
)

// TxStartStopPoint is a condition that may start or stop a transaction.
type TxStartStopPoint string

const (
	TxPointParkingBayOccupancy TxStartStopPoint = "ParkingBayOccupancy"
	TxPointEVConnected         TxStartStopPoint = "EVConnected"
	TxPointAuthorized          TxStartStopPoint = "Authorized"
	TxPointDataSigned          TxStartStopPoint = "DataSigned"
	TxPointPowerPathClosed     TxStartStopPoint = "PowerPathClosed"
	TxPointEnergyTransfer      TxStartStopPoint = "EnergyTransfer"
)

var knownTxPoints = map[TxStartStopPoint]struct{}{
	TxPointParkingBayOccupancy: {},
	TxPointEVConnected:         {},
	TxPointAuthorized:          {},
	TxPointDataSigned:          {},
	TxPointPowerPathClosed:     {},
	TxPointEnergyTransfer:      {},
}

// TxPoints is an ordered option list of TxStartStopPoint values.
type TxPoints []TxStartStopPoint

func (p TxPoints) Contains(v TxStartStopPoint) bool {
	for _, x := range p {
		if x == v {
			return true
		}
	}
	return false
}

func (p TxPoints) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

// ParseTxPoints reads a comma separated option list. The empty string is an
// empty list.
func ParseTxPoints(s string) (TxPoints, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TxPoints{}, nil
	}
	var points TxPoints
	for _, raw := range strings.Split(s, ",") {
		v := TxStartStopPoint(strings.TrimSpace(raw))
		if _, ok := knownTxPoints[v]; !ok {
			return nil, fmt.Errorf("unknown tx start/stop point %q", raw)
		}
		if points.Contains(v) {
			return nil, fmt.Errorf("duplicate tx start/stop point %q", raw)
		}
		points = append(points, v)
	}
	return points, nil
}
