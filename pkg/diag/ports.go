// Package diag implements the troubleshooting operations for a servo bus
// that refuses to talk: port discovery, baud-rate sweeps, protocol format
// probes, power-supply checks, and per-motor health reports.
package diag

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes one serial port found on the system.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string

	// LikelyAdapter is set for ports whose USB identity matches the
	// adapters these arms ship with.
	LikelyAdapter bool
}

// USB vendor IDs of the serial adapters seen on SO-101 control boards.
var adapterVIDs = map[string]string{
	"1A86": "CH340/CH341 (WCH)",
	"0403": "FTDI",
	"10C4": "CP210x (Silicon Labs)",
}

// ListPorts enumerates serial ports with USB details where the OS exposes
// them. Bluetooth pseudo-ports are skipped; they hang opens on macOS.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	var infos []PortInfo
	for _, p := range ports {
		if strings.Contains(p.Name, "Bluetooth") {
			continue
		}
		info := PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          strings.ToUpper(p.VID),
			PID:          strings.ToUpper(p.PID),
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		}
		info.LikelyAdapter = classifyAdapter(info) != ""
		infos = append(infos, info)
	}
	return infos, nil
}

// AdapterName returns a human name for the port's USB adapter chip, or ""
// when the port is not a recognized adapter.
func (p PortInfo) AdapterName() string {
	return classifyAdapter(p)
}

func classifyAdapter(p PortInfo) string {
	if name, ok := adapterVIDs[p.VID]; ok {
		return name
	}
	// Some drivers report only a product string.
	product := strings.ToLower(p.Product)
	for _, hint := range []string{"ch340", "ch341", "usb serial", "usb-serial", "feetech"} {
		if strings.Contains(product, hint) {
			return p.Product
		}
	}
	return ""
}

// CandidatePorts filters a port list down to the ones worth probing:
// recognized adapters first, then any other USB port.
func CandidatePorts(ports []PortInfo) []PortInfo {
	var adapters, others []PortInfo
	for _, p := range ports {
		switch {
		case p.LikelyAdapter:
			adapters = append(adapters, p)
		case p.IsUSB:
			others = append(others, p)
		}
	}
	return append(adapters, others...)
}
