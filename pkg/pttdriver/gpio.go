package pttdriver

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"m17/pkg/logger"
)

// GPIOConfig names the chip device path and line offset the way the
// config layer expects them: a chardev path like "/dev/gpiochip0" and
// a BCM/offset number, not the deprecated sysfs gpio-number scheme.
type GPIOConfig struct {
	Chip       string // e.g. "/dev/gpiochip0"
	PTTLine    int
	DCDLine    int  // negative if no DCD input is wired
	InvertPTT  bool // active-low output
	InvertDCD  bool // active-low input
}

// GPIOControl drives PTT (and optionally senses DCD) through a Linux
// GPIO character device line, via go-gpiocdev.
type GPIOControl struct {
	log     *logger.Logger
	pttLine *gpiocdev.Line
	dcdLine *gpiocdev.Line
}

// NewGPIO requests the configured lines from the chip. The PTT line is
// requested as an output, initially released; the DCD line (if
// configured) as an input.
func NewGPIO(log *logger.Logger, cfg GPIOConfig) (*GPIOControl, error) {
	log = log.WithComponent("pttdriver")

	pttOpts := []gpiocdev.LineReqOption{
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("m17tnc-ptt"),
	}
	if cfg.InvertPTT {
		pttOpts = append(pttOpts, gpiocdev.AsActiveLow)
	}
	pttLine, err := gpiocdev.RequestLine(cfg.Chip, cfg.PTTLine, pttOpts...)
	if err != nil {
		return nil, fmt.Errorf("pttdriver: request PTT line %s:%d: %w", cfg.Chip, cfg.PTTLine, err)
	}

	g := &GPIOControl{log: log, pttLine: pttLine}

	if cfg.DCDLine >= 0 {
		dcdOpts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithConsumer("m17tnc-dcd"),
		}
		if cfg.InvertDCD {
			dcdOpts = append(dcdOpts, gpiocdev.AsActiveLow)
		}
		dcdLine, err := gpiocdev.RequestLine(cfg.Chip, cfg.DCDLine, dcdOpts...)
		if err != nil {
			pttLine.Close()
			return nil, fmt.Errorf("pttdriver: request DCD line %s:%d: %w", cfg.Chip, cfg.DCDLine, err)
		}
		g.dcdLine = dcdLine
	}

	return g, nil
}

func (g *GPIOControl) SetPTT(on bool) error {
	v := 0
	if on {
		v = 1
	}
	g.log.Debug("ptt (gpio)", logger.Bool("on", on))
	return g.pttLine.SetValue(v)
}

func (g *GPIOControl) DataCarrierDetect() (bool, error) {
	if g.dcdLine == nil {
		return false, nil
	}
	v, err := g.dcdLine.Value()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (g *GPIOControl) Close() error {
	var err error
	if g.dcdLine != nil {
		err = g.dcdLine.Close()
	}
	if pErr := g.pttLine.Close(); pErr != nil && err == nil {
		err = pErr
	}
	return err
}

var (
	_ Control   = (*GPIOControl)(nil)
	_ DCDSensor = (*GPIOControl)(nil)
)
