package models

import "strings"

type ControlSignal string

const (
	ControlStart   ControlSignal = "start"
	ControlStop    ControlSignal = "stop"
	ControlUnknown ControlSignal = "unknown"
)

func ParseControlSignal(s string) ControlSignal {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start":
		return ControlStart
	case "stop":
		return ControlStop
	}
	return ControlUnknown
}
