package charger

import "testing"

type fakeBus struct {
	regs   map[byte]byte
	writes []byte
}

func (b *fakeBus) ReadByteData(reg byte) (byte, error) {
	return b.regs[reg], nil
}

func (b *fakeBus) WriteByteData(reg, value byte) error {
	if b.regs == nil {
		b.regs = map[byte]byte{}
	}
	b.regs[reg] = value
	b.writes = append(b.writes, reg)
	return nil
}

func TestDecodeStatus(t *testing.T) {
	tests := []struct {
		name     string
		raw      byte
		vbus     VBusStatus
		charge   ChargeStatus
		pg       bool
		charging bool
	}{
		{"NoInput", 0x00, VBusNoInput, ChargeNone, false, false},
		{"AdapterFastCharge", 0b10100100, VBusAdapter, ChargeFast, true, true},
		{"PowerGoodOnly", 0b00000100, VBusNoInput, ChargeNone, true, true},
		{"USBPreCharge", 0b01010000, VBusUSBHost, ChargePre, false, true},
		{"ChargeDone", 0b10110100, VBusAdapter, ChargeDone, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := DecodeStatus(tt.raw)
			if st.VBus != tt.vbus || st.Charge != tt.charge || st.PowerGood != tt.pg {
				t.Errorf("unexpected decode of 0x%02x: %+v", tt.raw, st)
			}
			if st.Charging() != tt.charging {
				t.Errorf("expected charging=%v, got: %v", tt.charging, st.Charging())
			}
		})
	}
}

func TestBQ2429x_Configure(t *testing.T) {
	bus := &fakeBus{}
	if err := NewBQ2429x(bus).Configure(); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if bus.regs[regTermTimer] != DefaultTermTimer {
		t.Errorf("expected REG05=0x%02x, got: 0x%02x", DefaultTermTimer, bus.regs[regTermTimer])
	}
	if bus.regs[regTermPrecharge] != DefaultTermPrecharge {
		t.Errorf("expected REG03=0x%02x, got: 0x%02x", DefaultTermPrecharge, bus.regs[regTermPrecharge])
	}
}

func TestBQ2429x_Status(t *testing.T) {
	bus := &fakeBus{regs: map[byte]byte{regSystemStatus: 0b10100100}}
	st, err := NewBQ2429x(bus).Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !st.Charging() {
		t.Error("expected charging status")
	}
	if st.VBus.String() != "Adapter port" {
		t.Errorf("expected Adapter port, got: %s", st.VBus)
	}
}
