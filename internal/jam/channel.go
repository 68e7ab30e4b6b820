package jam

import "fmt"

// Channel is one of the two independent loop slots.
type Channel int

const (
	Drums Channel = iota
	Instruments

	numChannels = 2
)

func (c Channel) String() string {
	switch c {
	case Drums:
		return "drums"
	case Instruments:
		return "instruments"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// ParseChannel maps an API channel name to a Channel.
func ParseChannel(s string) (Channel, error) {
	switch s {
	case "drums":
		return Drums, nil
	case "instruments":
		return Instruments, nil
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}

// Valid reports whether c names a real channel.
func (c Channel) Valid() bool {
	return c >= 0 && c < numChannels
}
