package mqtt

import "fmt"

// Topic suffixes under the configured prefix
const (
	suffixDisplaySet    = "display/set"
	suffixDisplayOutput = "display/outputs"
	suffixStatePeriod   = "state/period"
	suffixControlReload = "control/reload"
	suffixControlTest   = "control/test"
)

// Topics holds the topic names for one prefix.
// Pattern: {prefix}/{group}/{name}
type Topics struct {
	prefix string
}

// NewTopics creates the topic set rooted at prefix (e.g. "duskd")
func NewTopics(prefix string) Topics {
	return Topics{prefix: prefix}
}

// DisplaySet is where gamma commands are published for the display bridge
func (t Topics) DisplaySet() string { return t.topic(suffixDisplaySet) }

// DisplayOutputs carries the bridge's retained list of connected outputs
func (t Topics) DisplayOutputs() string { return t.topic(suffixDisplayOutput) }

// StatePeriod carries the retained announcement of the current mode
func (t Topics) StatePeriod() string { return t.topic(suffixStatePeriod) }

// ControlReload requests a configuration reload (any payload)
func (t Topics) ControlReload() string { return t.topic(suffixControlReload) }

// ControlTest enters or leaves test mode
func (t Topics) ControlTest() string { return t.topic(suffixControlTest) }

func (t Topics) topic(suffix string) string {
	return fmt.Sprintf("%s/%s", t.prefix, suffix)
}
