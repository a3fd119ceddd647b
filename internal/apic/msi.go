package apic

import (
	"fmt"

	"github.com/meridian-os/platform/internal/intctrl"
)

// getMessageInformation computes count contiguous MSI/MSI-X (address, data)
// pairs starting at vector. The address combines the fixed local-unit
// physical base with destination routing; the data carries delivery mode
// and vector. Messages are always edge triggered. The pairs differ only in
// the vector field of data.
func (p *Platform) getMessageInformation(vector, count uint64, target intctrl.Target, output intctrl.Line, flags intctrl.StateFlags) ([]intctrl.Message, error) {
	if p.table == nil {
		return nil, fmt.Errorf("apic: message information: %w", intctrl.ErrNotInitialized)
	}

	address := p.table.LocalAPICAddress & msiAddressBaseMask

	switch t := target.(type) {
	case intctrl.All:
		address |= 0xFF << msiAddressDestIDShift

	case intctrl.Physical:
		address |= (uint64(t) << msiAddressDestIDShift) & msiAddressDestIDMask

	case intctrl.Self:
		win, err := p.localWindow()
		if err != nil {
			return nil, err
		}
		id := uint64(readLocal(win, regID) >> destinationShift)
		address |= (id << msiAddressDestIDShift) & msiAddressDestIDMask

	case intctrl.LogicalCluster:
		logical := uint64(t.ID<<clusterShift | t.Mask)
		address |= (logical << msiAddressDestIDShift) & msiAddressDestIDMask
		address |= msiAddressLogicalMode | msiAddressRedirection

	case intctrl.LogicalFlat:
		logical := uint64(t)
		address |= (logical << msiAddressDestIDShift) & msiAddressDestIDMask
		address |= msiAddressLogicalMode | msiAddressRedirection

	default:
		// AllButSelf has no message encoding.
		return nil, fmt.Errorf("apic: message target %s: %w", target, intctrl.ErrInvalidParameter)
	}

	data := uint64(msiDataEdgeTriggered)
	mode, err := outputDeliveryMode(output, flags)
	if err != nil {
		return nil, err
	}
	switch mode {
	case deliverLowest:
		data |= msiDataDeliverLowest
	case deliverFixed:
		data |= msiDataDeliverFixed
	case deliverNMI:
		data |= msiDataDeliverNMI
	case deliverSMI:
		data |= msiDataDeliverSMI
	}

	messages := make([]intctrl.Message, count)
	for i := range messages {
		messages[i] = intctrl.Message{
			Address: address,
			Data:    data | (vector+uint64(i))&msiDataVectorMask,
		}
	}
	return messages, nil
}
