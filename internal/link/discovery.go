package link

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DiscoveryConfig configures the bluetoothctl-based device inquiry.
type DiscoveryConfig struct {
	// BluetoothctlPath is the path to the bluetoothctl binary. Default:
	// "bluetoothctl" (searches PATH).
	BluetoothctlPath string
	// ScanDuration bounds how long the inquiry listens for advertisements.
	ScanDuration time.Duration
	// NamePrefix and NameContains are matched against each discovered
	// device's friendly name; both must hold for a match. Defaults to the
	// BioHarness naming convention ("BH" prefix, containing "BHT").
	NamePrefix   string
	NameContains string
}

// DefaultDiscoveryConfig returns the BioHarness-specific defaults.
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		BluetoothctlPath: "bluetoothctl",
		ScanDuration:     8 * time.Second,
		NamePrefix:       "BH",
		NameContains:     "BHT",
	}
}

// DiscoveredDevice is a single bluetoothctl inquiry result.
type DiscoveredDevice struct {
	Address string
	Name    string
}

// Discoverer finds a paired-or-discoverable BioHarness by shelling out to
// bluetoothctl, in the same spirit as invoking an external toolchain binary
// and parsing its line-oriented output: there is no Bluetooth library in
// play here, only a thin wrapper around the system's own BlueZ client.
type Discoverer struct {
	config DiscoveryConfig
	logger *zap.Logger
}

// NewDiscoverer builds a Discoverer with the given configuration.
func NewDiscoverer(config DiscoveryConfig, logger *zap.Logger) *Discoverer {
	if config.BluetoothctlPath == "" {
		config.BluetoothctlPath = DefaultDiscoveryConfig().BluetoothctlPath
	}
	if config.ScanDuration <= 0 {
		config.ScanDuration = DefaultDiscoveryConfig().ScanDuration
	}
	return &Discoverer{config: config, logger: logger}
}

// ErrNoDeviceFound is returned when the scan completes without a matching
// device name. Callers should treat this as fatal at the call site rather
// than retry silently forever.
var ErrNoDeviceFound = fmt.Errorf("link: no matching BioHarness device found")

// Find runs `bluetoothctl --timeout <n> scan on` and parses its "Device
// <addr> <name>" lines, returning the first device whose name matches the
// configured prefix/substring rule.
func (d *Discoverer) Find(ctx context.Context) (DiscoveredDevice, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.ScanDuration+5*time.Second)
	defer cancel()

	d.logger.Info("scanning for BioHarness device",
		zap.Duration("scan_duration", d.config.ScanDuration),
		zap.String("name_prefix", d.config.NamePrefix),
	)

	cmd := exec.CommandContext(ctx, d.config.BluetoothctlPath,
		"--timeout", fmt.Sprintf("%d", int(d.config.ScanDuration.Seconds())), "scan", "on")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return DiscoveredDevice{}, fmt.Errorf("link: bluetoothctl stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return DiscoveredDevice{}, fmt.Errorf("link: failed to start bluetoothctl: %w", err)
	}

	var found *DiscoveredDevice
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		dev, ok := parseDeviceLine(scanner.Text())
		if !ok {
			continue
		}
		d.logger.Debug("observed device", zap.String("address", dev.Address), zap.String("name", dev.Name))
		if matchesBioHarnessName(dev.Name, d.config) {
			found = &dev
			break
		}
	}
	_ = cmd.Wait()

	if found == nil {
		d.logger.Error("no matching device found", zap.Error(ErrNoDeviceFound))
		return DiscoveredDevice{}, ErrNoDeviceFound
	}
	d.logger.Info("found BioHarness device", zap.String("address", found.Address), zap.String("name", found.Name))
	return *found, nil
}

// parseDeviceLine extracts the address and name from a bluetoothctl
// "[NEW] Device XX:XX:XX:XX:XX:XX Name" style line.
func parseDeviceLine(line string) (DiscoveredDevice, bool) {
	idx := strings.Index(line, "Device ")
	if idx < 0 {
		return DiscoveredDevice{}, false
	}
	rest := strings.TrimSpace(line[idx+len("Device "):])
	fields := strings.SplitN(rest, " ", 2)
	if len(fields) != 2 {
		return DiscoveredDevice{}, false
	}
	return DiscoveredDevice{Address: fields[0], Name: fields[1]}, true
}

func matchesBioHarnessName(name string, cfg DiscoveryConfig) bool {
	return strings.HasPrefix(name, cfg.NamePrefix) && strings.Contains(name, cfg.NameContains)
}
