package model

import (
	"github.com/a-bouts/race-engine/polar"
)

type Health struct {
	Status string `json:"status"`
}

type Heading struct {
	Heading *float64 `json:"heading"`
}

type Tack struct {
	Accepted bool    `json:"accepted"`
	Target   float64 `json:"target,omitempty"`
}

type Wind struct {
	U         float64 `json:"u"`
	V         float64 `json:"v"`
	Direction float64 `json:"direction"`
	Speed     float64 `json:"speed"`
}

type Polar struct {
	Tws   float64 `json:"tws"`
	Twa   float64 `json:"twa"`
	Speed float64 `json:"speed"`
}

type VMG struct {
	Twa float64 `json:"twa"`
	VMG float64 `json:"vmg"`
}

type PolarInfo struct {
	Table    *polar.Table `json:"table"`
	MaxSpeed float64      `json:"maxSpeed"`
	Upwind   *VMG         `json:"upwind,omitempty"`
	Downwind *VMG         `json:"downwind,omitempty"`
}

// Command is a message sent by a client on the snapshot stream.
type Command struct {
	Action  string  `json:"action"`
	Heading float64 `json:"heading,omitempty"`
}

type Error struct {
	Error string `json:"error"`
}
