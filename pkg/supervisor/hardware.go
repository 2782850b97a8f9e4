package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/charger"
	"github.com/urmzd/pira/pkg/config"
	"github.com/urmzd/pira/pkg/gpio"
	"github.com/urmzd/pira/pkg/pirasmart"
)

// GPIORetryDelay is the backoff between pigpiod connection attempts.
const GPIORetryDelay = time.Second

// Hardware is the set of device handles the supervisor owns.
type Hardware struct {
	GPIO    *gpio.Client
	Link    *pirasmart.Link
	Charger *charger.BQ2429x

	i2c *gpio.I2CDevice
}

// OpenHardware connects to pigpiod, retrying until ctx is cancelled, opens
// the charger and then the PiraSmart serial port. A charger that cannot be
// opened is logged and left out. An unopenable serial port is returned as an
// error wrapping pirasmart.ErrOpen.
func OpenHardware(ctx context.Context, cfg *config.Config) (*Hardware, error) {
	log.Info().Str("addr", cfg.GPIOAddr).Msg("Initializing GPIO")
	gp, err := gpio.Connect(ctx, gpio.TCPDialer(cfg.GPIOAddr), GPIORetryDelay)
	if err != nil {
		return nil, err
	}

	hw := &Hardware{GPIO: gp}

	log.Info().Msg("Initializing device drivers")
	dev, err := gp.OpenI2C(charger.Bus, charger.Address)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open charger")
	} else {
		hw.i2c = dev
		hw.Charger = charger.NewBQ2429x(dev)
	}

	link, err := pirasmart.Open(cfg.SerialPort)
	if err != nil {
		hw.Close()
		return nil, err
	}
	hw.Link = link
	return hw, nil
}

// Close releases every handle.
func (h *Hardware) Close() {
	if h.Link != nil {
		if err := h.Link.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close PiraSmart link")
		}
	}
	if h.i2c != nil {
		if err := h.i2c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close charger")
		}
	}
	if h.GPIO != nil {
		if err := h.GPIO.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close GPIO")
		}
	}
}

// Options returns supervisor options for this hardware. A nil charger is
// kept as a nil interface.
func (h *Hardware) Options(cfg *config.Config) Options {
	opts := Options{
		Config: cfg,
		Link:   h.Link,
		Pins:   h.GPIO,
	}
	if h.Charger != nil {
		opts.Charger = h.Charger
	}
	return opts
}
