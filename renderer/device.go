package renderer

import (
	"fmt"

	"render-harness/hal"
)

// DeviceContext holds the adapter, device and queue acquired for one surface.
type DeviceContext struct {
	Adapter hal.Adapter
	Device  hal.Device
	Queue   hal.Queue
}

// AcquireDevice selects a high-performance adapter able to present to
// surface and opens a device with default features and limits. It blocks
// until the backend answers and does not retry.
func AcquireDevice(instance hal.Instance, surface hal.Surface) (*DeviceContext, error) {
	adapter, err := instance.RequestAdapter(&hal.RequestAdapterOptions{
		PowerPreference:      hal.PowerPreferenceHighPerformance,
		CompatibleSurface:    surface,
		ForceFallbackAdapter: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get adapter: %w", err)
	}

	info := adapter.Info()
	Logger().Info("adapter selected",
		"name", info.Name,
		"backend", info.Backend,
		"device_type", info.DeviceType.String(),
		"driver", info.Driver,
	)

	device, err := adapter.RequestDevice(&hal.DeviceDescriptor{Label: "device and queues"})
	if err != nil {
		adapter.Release()
		return nil, fmt.Errorf("failed to get device and queues: %w", err)
	}

	return &DeviceContext{
		Adapter: adapter,
		Device:  device,
		Queue:   device.Queue(),
	}, nil
}

// Release releases the queue, device and adapter.
func (dc *DeviceContext) Release() {
	if dc.Queue != nil {
		dc.Queue.Release()
		dc.Queue = nil
	}
	if dc.Device != nil {
		dc.Device.Release()
		dc.Device = nil
	}
	if dc.Adapter != nil {
		dc.Adapter.Release()
		dc.Adapter = nil
	}
}
