package deviceinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vbendeb/opentitan/devicedef"
)

func TestCapabilitiesForDescriptor(t *testing.T) {
	t.Run("streams", func(t *testing.T) {
		desc := devicedef.TestDescriptor{TestNumber: devicedef.TestNumberStreams, TestArgs: [4]byte{0x02}}
		caps := CapabilitiesForDescriptor(desc)
		assert.ElementsMatch(t, []string{devicedef.CapabilityBulk, devicedef.CapabilitySerial}, caps)
	})

	t.Run("iso", func(t *testing.T) {
		desc := devicedef.TestDescriptor{TestNumber: devicedef.TestNumberIso, TestArgs: [4]byte{0x02}}
		caps := CapabilitiesForDescriptor(desc)
		assert.ElementsMatch(t, []string{devicedef.CapabilityIsochronous}, caps)
	})

	t.Run("mixed", func(t *testing.T) {
		desc := devicedef.TestDescriptor{TestNumber: devicedef.TestNumberMixed, TestArgs: [4]byte{0x04, 0xE4, 0x00, 0x00}}
		caps := CapabilitiesForDescriptor(desc)
		assert.ElementsMatch(t, []string{
			devicedef.CapabilityControl,
			devicedef.CapabilityIsochronous,
			devicedef.CapabilityBulk,
			devicedef.CapabilityInterrupt,
		}, caps)
	})

	t.Run("suspend", func(t *testing.T) {
		desc := devicedef.TestDescriptor{TestNumber: devicedef.TestNumberSuspend}
		caps := CapabilitiesForDescriptor(desc)
		assert.ElementsMatch(t, []string{devicedef.CapabilityBulk, devicedef.CapabilitySuspend}, caps)
	})
}
