package intctrl

import "fmt"

// Target describes the set of processors an interrupt is steered to. It is
// a sealed sum type over the hardware addressing modes.
type Target interface {
	isTarget()
	String() string
}

// Physical targets one processor by its hardware identifier.
type Physical uint32

func (Physical) isTarget()        {}
func (p Physical) String() string { return fmt.Sprintf("physical:%d", uint32(p)) }

// LogicalFlat targets the processors whose bit is set in an 8-bit mask.
type LogicalFlat uint32

func (LogicalFlat) isTarget()        {}
func (t LogicalFlat) String() string { return fmt.Sprintf("flat:%#x", uint32(t)) }

// LogicalCluster targets processors within one cluster.
type LogicalCluster struct {
	ID   uint32
	Mask uint32
}

func (LogicalCluster) isTarget() {}
func (t LogicalCluster) String() string {
	return fmt.Sprintf("cluster:%d mask:%#x", t.ID, t.Mask)
}

// All targets every processor, including the sender.
type All struct{}

func (All) isTarget()      {}
func (All) String() string { return "all" }

// AllButSelf targets every processor except the sender.
type AllButSelf struct{}

func (AllButSelf) isTarget()      {}
func (AllButSelf) String() string { return "all-but-self" }

// Self targets only the sending processor.
type Self struct{}

func (Self) isTarget()      {}
func (Self) String() string { return "self" }
