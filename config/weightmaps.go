package config

import "fmt"

// Channel identifies a per-vertex weight map.
type Channel uint8

const (
	EdgeStiffness Channel = iota
	BendingStiffness
	BucklingStiffness
	AreaStiffness
	TetherStiffness
	TetherScale
	MaxDistance
	BackstopDistance
	BackstopRadius
	AnimDriveStiffness
	AnimDriveDamping
	EdgeDamping
	BendingDamping
	BendingWarpStiffness
	BendingWeftStiffness
	BendingBiasStiffness
	ChannelCount
)

var channelNames = [ChannelCount]string{
	EdgeStiffness:        "EdgeStiffness",
	BendingStiffness:     "BendingStiffness",
	BucklingStiffness:    "BucklingStiffness",
	AreaStiffness:        "AreaStiffness",
	TetherStiffness:      "TetherStiffness",
	TetherScale:          "TetherScale",
	MaxDistance:          "MaxDistance",
	BackstopDistance:     "BackstopDistance",
	BackstopRadius:       "BackstopRadius",
	AnimDriveStiffness:   "AnimDriveStiffness",
	AnimDriveDamping:     "AnimDriveDamping",
	EdgeDamping:          "EdgeDamping",
	BendingDamping:       "BendingDamping",
	BendingWarpStiffness: "BendingWarpStiffness",
	BendingWeftStiffness: "BendingWeftStiffness",
	BendingBiasStiffness: "BendingBiasStiffness",
}

func (c Channel) String() string {
	if c < ChannelCount {
		return channelNames[c]
	}
	return fmt.Sprintf("Channel(%d)", uint8(c))
}

// WeightMaps holds the per-vertex weights of a cloth object, values in [0, 1].
// A missing or empty channel means the Low value of the matching Range.
type WeightMaps map[Channel][]float64

// Get returns the weights of a channel, nil when not painted.
func (w WeightMaps) Get(c Channel) []float64 {
	if w == nil {
		return nil
	}
	return w[c]
}

// Check panics if a painted channel does not have exactly one weight per
// vertex of the object.
func (w WeightMaps) Check(numVertices int) {
	for c, weights := range w {
		if len(weights) != 0 && len(weights) != numVertices {
			panic(fmt.Sprintf("config: weight map %s has %d values, expected %d", c, len(weights), numVertices))
		}
	}
}
