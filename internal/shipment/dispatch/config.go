package dispatch

import "time"

// ConfigAdapter bridges shipment.Config with the dispatcher Config interface.
type ConfigAdapter struct {
	SearchRadiusStart int
	SearchRadiusStep  int
	SearchRadiusMax   int
	DispatchTick      time.Duration
	OfferTTL          time.Duration
	BatchSize         int
	AverageSpeedKmh   float64
	RegionKey         string
}

func (c ConfigAdapter) GetSearchRadiusStart() int      { return c.SearchRadiusStart }
func (c ConfigAdapter) GetSearchRadiusStep() int       { return c.SearchRadiusStep }
func (c ConfigAdapter) GetSearchRadiusMax() int        { return c.SearchRadiusMax }
func (c ConfigAdapter) GetDispatchTick() time.Duration { return c.DispatchTick }
func (c ConfigAdapter) GetOfferTTL() time.Duration     { return c.OfferTTL }
func (c ConfigAdapter) GetBatchSize() int              { return c.BatchSize }
func (c ConfigAdapter) GetAverageSpeedKmh() float64    { return c.AverageSpeedKmh }
func (c ConfigAdapter) GetRegionKey() string           { return c.RegionKey }
