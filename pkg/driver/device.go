// Package driver is the lifecycle surface of the lyf_npu device: devices,
// contexts and programs built from core models.
package driver

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/examples/AI/lyfnpu/pkg/converter"
	"k8s.io/examples/AI/lyfnpu/pkg/converter/ops"
	"k8s.io/examples/AI/lyfnpu/pkg/device"
	"k8s.io/examples/AI/lyfnpu/pkg/device/kernels"
	"k8s.io/klog/v2"
)

const (
	DeviceName    = "lyf_npu"
	DeviceVendor  = "Paddle"
	DeviceVersion = 1
)

type Device struct {
	Name    string
	Vendor  string
	Version int32
}

func OpenDevice(ctx context.Context) (*Device, error) {
	klog.FromContext(ctx).Info("opening device", "name", DeviceName)
	return &Device{
		Name:    DeviceName,
		Vendor:  DeviceVendor,
		Version: DeviceVersion,
	}, nil
}

func (d *Device) Close(ctx context.Context) {
	klog.FromContext(ctx).Info("closing device", "name", d.Name)
}

// Context holds the per-session configuration used to validate and build
// programs.
type Context struct {
	device     *Device
	properties map[string]string

	registry converter.Registry
	kernels  device.KernelTable
}

// CreateContext parses properties of the form "KEY1=VALUE1;KEY2=VALUE2".
func CreateContext(ctx context.Context, d *Device, properties string) (*Context, error) {
	if d == nil {
		return nil, status.Errorf(codes.InvalidArgument, "device is required")
	}
	parsed, err := ParseProperties(properties)
	if err != nil {
		return nil, err
	}
	klog.FromContext(ctx).Info("creating context", "device", d.Name, "properties", parsed)
	return &Context{
		device:     d,
		properties: parsed,
		registry:   ops.Default(),
		kernels:    kernels.Default(),
	}, nil
}

func (c *Context) Device() *Device {
	return c.device
}

func (c *Context) Property(key string) (string, bool) {
	v, found := c.properties[key]
	return v, found
}

func (c *Context) Close(ctx context.Context) {
	klog.FromContext(ctx).Info("destroying context", "device", c.device.Name)
}

func ParseProperties(s string) (map[string]string, error) {
	properties := make(map[string]string)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, status.Errorf(codes.InvalidArgument, "invalid context property %q, expected KEY=VALUE", entry)
		}
		properties[key] = strings.TrimSpace(value)
	}
	return properties, nil
}
