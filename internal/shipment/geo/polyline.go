package geo

import (
	"math"
	"strings"
)

// EncodePolyline renders points in the Google encoded polyline format (precision 5).
func EncodePolyline(points []Point) string {
	var b strings.Builder
	var prevLat, prevLon int64
	for _, p := range points {
		lat := int64(math.Round(p.Lat * 1e5))
		lon := int64(math.Round(p.Lon * 1e5))
		encodeValue(&b, lat-prevLat)
		encodeValue(&b, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return b.String()
}

func encodeValue(b *strings.Builder, v int64) {
	v <<= 1
	if v < 0 {
		v = ^v
	}
	for v >= 0x20 {
		b.WriteByte(byte((0x20 | (v & 0x1f)) + 63))
		v >>= 5
	}
	b.WriteByte(byte(v + 63))
}
