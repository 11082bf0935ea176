package app

import "fmt"

// SlowConsumerPolicy decides what happens when a connection's send buffer is full.
type SlowConsumerPolicy int

const (
	// DropOldest evicts the oldest queued frame to make room for the new one.
	DropOldest SlowConsumerPolicy = iota
	// Disconnect unregisters the slow connection.
	Disconnect
)

func ParsePolicy(s string) (SlowConsumerPolicy, error) {
	switch s {
	case "", "drop_oldest":
		return DropOldest, nil
	case "disconnect":
		return Disconnect, nil
	default:
		return DropOldest, fmt.Errorf("unknown slow consumer policy %q", s)
	}
}

func (p SlowConsumerPolicy) String() string {
	if p == Disconnect {
		return "disconnect"
	}
	return "drop_oldest"
}
