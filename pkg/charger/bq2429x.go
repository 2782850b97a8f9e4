// Package charger reads the BQ2429x battery charger and keeps a debounced
// view of whether the station is charging.
package charger

import "fmt"

// I2C address and registers of the BQ2429x.
const (
	Address = 0x6B
	Bus     = 1

	regTermPrecharge = 0x03
	regTermTimer     = 0x05
	regSystemStatus  = 0x08
)

// Register values written at boot.
const (
	// EN_TERM enabled, I2C watchdog disabled, charge safety timer disabled.
	// Both timers must stay off on a device that is powered permanently.
	DefaultTermTimer byte = 0b10000010

	// Pre-charge current above self-consumption, termination current below it.
	DefaultTermPrecharge byte = 0b11110001
)

// BusIO is register level access to the charger.
type BusIO interface {
	ReadByteData(reg byte) (byte, error)
	WriteByteData(reg, value byte) error
}

// VBusStatus is the VBUS_STAT field of the system status register.
type VBusStatus uint8

const (
	VBusNoInput VBusStatus = iota
	VBusUSBHost
	VBusAdapter
	VBusOTG
)

func (s VBusStatus) String() string {
	switch s {
	case VBusNoInput:
		return "No input"
	case VBusUSBHost:
		return "USB host"
	case VBusAdapter:
		return "Adapter port"
	case VBusOTG:
		return "OTG"
	default:
		return "Unknown"
	}
}

// ChargeStatus is the CHRG_STAT field of the system status register.
type ChargeStatus uint8

const (
	ChargeNone ChargeStatus = iota
	ChargePre
	ChargeFast
	ChargeDone
)

func (s ChargeStatus) String() string {
	switch s {
	case ChargeNone:
		return "Not charging"
	case ChargePre:
		return "Pre-charge"
	case ChargeFast:
		return "Fast charging"
	case ChargeDone:
		return "Charge termination done"
	default:
		return "Unknown"
	}
}

// Status is a decoded system status register.
type Status struct {
	VBus      VBusStatus
	Charge    ChargeStatus
	PowerGood bool
	Raw       byte
}

// DecodeStatus splits REG08 into its fields.
func DecodeStatus(raw byte) Status {
	return Status{
		VBus:      VBusStatus(raw >> 6 & 0x03),
		Charge:    ChargeStatus(raw >> 4 & 0x03),
		PowerGood: raw&0x04 != 0,
		Raw:       raw,
	}
}

// Charging is false only when there is no input, no charge cycle and no
// good power at the same time.
func (s Status) Charging() bool {
	notCharging := s.VBus == VBusNoInput && s.Charge == ChargeNone && !s.PowerGood
	return !notCharging
}

// BQ2429x is the charger driver.
type BQ2429x struct {
	bus BusIO
}

// NewBQ2429x creates a driver on an opened I2C device.
func NewBQ2429x(bus BusIO) *BQ2429x {
	return &BQ2429x{bus: bus}
}

// Status reads the system status register.
func (d *BQ2429x) Status() (Status, error) {
	raw, err := d.bus.ReadByteData(regSystemStatus)
	if err != nil {
		return Status{}, fmt.Errorf("read system status: %w", err)
	}
	return DecodeStatus(raw), nil
}

// SetChargeTermination writes the termination/timer control register.
func (d *BQ2429x) SetChargeTermination(value byte) error {
	if err := d.bus.WriteByteData(regTermTimer, value); err != nil {
		return fmt.Errorf("write charge termination: %w", err)
	}
	return nil
}

// SetTermPrechargeCurrent writes the pre-charge/termination current register.
func (d *BQ2429x) SetTermPrechargeCurrent(value byte) error {
	if err := d.bus.WriteByteData(regTermPrecharge, value); err != nil {
		return fmt.Errorf("write pre-charge/termination current: %w", err)
	}
	return nil
}

// Configure applies the boot-time register defaults.
func (d *BQ2429x) Configure() error {
	if err := d.SetChargeTermination(DefaultTermTimer); err != nil {
		return err
	}
	return d.SetTermPrechargeCurrent(DefaultTermPrecharge)
}
