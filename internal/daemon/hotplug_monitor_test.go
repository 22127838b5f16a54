package daemon

import (
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestExtractDeviceName(t *testing.T) {
	tests := []struct {
		name   string
		uevent netlink.UEvent
		want   string
	}{
		{
			name:   "devname present",
			uevent: netlink.UEvent{Env: map[string]string{"DEVNAME": "/dev/sdb1"}},
			want:   "/dev/sdb1",
		},
		{
			name:   "devpath fallback",
			uevent: netlink.UEvent{Env: map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/block/sdc"}},
			want:   "/dev/sdc",
		},
		{
			name:   "no device info",
			uevent: netlink.UEvent{Env: map[string]string{}},
			want:   "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractDeviceName(tc.uevent); got != tc.want {
				t.Fatalf("extractDeviceName = %q, want %q", got, tc.want)
			}
		})
	}
}
