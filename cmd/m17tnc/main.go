// Command m17tnc hosts a sound-free loopback M17 TNC: the modulator's
// shaped samples feed straight into the demodulator in software, with
// no sound card or radio in between. It exposes the TNC to a KISS TCP
// client and drives a PTT line through pkg/pttdriver the same way a
// real RF-attached TNC would.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"m17/pkg/app"
	"m17/pkg/bitops"
	"m17/pkg/config"
	"m17/pkg/kiss"
	"m17/pkg/logger"
	"m17/pkg/m17frame"
	"m17/pkg/metrics"
	"m17/pkg/modem"
	"m17/pkg/mqtt"
	"m17/pkg/pttdriver"
	"m17/pkg/statushub"
	"m17/pkg/tnc"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("m17tnc %s (%s)\n", version, gitCommit)
		os.Exit(0)
	}

	log := logger.New(logger.Config{Level: "info", Format: "text"})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("failed to load configuration", logger.Error(err))
		os.Exit(1)
	}
	log = logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	pttCtl, err := buildPTT(log, cfg.PTT)
	if err != nil {
		log.Error("failed to initialize ptt driver", logger.Error(err))
		os.Exit(1)
	}
	defer pttCtl.Close()

	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		metricsServer := metrics.NewServer(metrics.ServerConfig{
			Enabled: cfg.Metrics.Prometheus.Enabled,
			Port:    cfg.Metrics.Prometheus.Port,
			Path:    cfg.Metrics.Prometheus.Path,
		}, m, log.WithComponent("metrics"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("metrics server error", logger.Error(err))
			}
		}()
	}

	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPub = mqtt.New(mqtt.Config{
			Enabled:     cfg.MQTT.Enabled,
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         cfg.MQTT.QoS,
			Retained:    cfg.MQTT.Retained,
		}, log.WithComponent("mqtt"))
		if err := mqttPub.Start(); err != nil {
			log.Error("mqtt publisher error", logger.Error(err))
		}
	}

	hub := statushub.New(log.WithComponent("statushub"))
	go hub.Run(ctx)

	lb := newLoopbackTnc(pttCtl, cfg.TNC)
	a := app.New(lb)

	bridge := newKissBridge(log.WithComponent("kissbridge"), a, m, mqttPub, hub)
	a.RegisterPacketAdapter(bridge)
	a.RegisterStreamAdapter(bridge)

	if err := a.Start(); err != nil {
		log.Error("failed to start app", logger.Error(err))
		os.Exit(1)
	}

	if cfg.TNC.KISSPort != 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bridge.listenTCP(ctx, cfg.TNC.KISSPort); err != nil && err != context.Canceled {
				log.Error("kiss tcp listener error", logger.Error(err))
			}
		}()
		log.Info("kiss tcp bridge listening", logger.Int("port", cfg.TNC.KISSPort))

		statusPort := cfg.TNC.KISSPort + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveStatusHub(ctx, statusPort, hub, log)
		}()
		log.Info("status dashboard listening", logger.Int("port", statusPort))
	}

	log.Info("m17tnc started", logger.String("server_name", cfg.Server.Name))

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))
	cancel()
	_ = a.Close()
	if mqttPub != nil {
		mqttPub.Stop()
	}
	wg.Wait()
	log.Info("m17tnc stopped")
}

func buildPTT(log *logger.Logger, cfg config.PTTConfig) (pttdriver.Control, error) {
	switch cfg.Driver {
	case "gpio":
		return pttdriver.NewGPIO(log, pttdriver.GPIOConfig{
			Chip:      cfg.GPIO.Chip,
			PTTLine:   cfg.GPIO.PTTLine,
			DCDLine:   cfg.GPIO.DCDLine,
			InvertPTT: cfg.GPIO.InvertPTT,
			InvertDCD: cfg.GPIO.InvertDCD,
		})
	case "serial":
		line := pttdriver.SerialRTS
		if cfg.Serial.Line == "dtr" {
			line = pttdriver.SerialDTR
		}
		return pttdriver.OpenSerial(log, cfg.Serial.Device, line, cfg.Serial.Invert)
	default:
		return pttdriver.NewNoop(log, "m17tnc"), nil
	}
}

// loopbackTnc implements app.Tnc by looping the modulator's shaped
// samples straight into the demodulator: no sound card, no radio.
type loopbackTnc struct {
	core      *tnc.TNC
	modulator *modem.Modulator
	demod     *modem.Demodulator
	pttCtl    pttdriver.Control

	kissOut chan []byte
	hostBuf kiss.Buffer

	closeOnce sync.Once
	closed    chan struct{}
}

func newLoopbackTnc(pttCtl pttdriver.Control, cfg config.TNCConfig) *loopbackTnc {
	l := &loopbackTnc{
		pttCtl:  pttCtl,
		kissOut: make(chan []byte, 128),
		closed:  make(chan struct{}),
	}
	l.core = tnc.New(func(frame []byte) {
		select {
		case l.kissOut <- frame:
		default:
		}
	})
	l.core.SetTxDelay(byte(cfg.TxDelay))
	l.core.SetFullDuplex(cfg.FullDuplex)
	l.core.SetPersistence(byte(cfg.Persistence * 255))
	l.core.SetSlotTime(cfg.SlotTime)
	if cfg.CAN != 0 {
		can := byte(cfg.CAN)
		l.core.SetCANFilter(&can)
	}
	l.modulator = modem.NewModulator()
	l.demod = modem.NewDemodulator()
	return l
}

func (l *loopbackTnc) Start() error {
	go l.pumpLoop()
	return nil
}

func (l *loopbackTnc) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *loopbackTnc) Read(p []byte) (int, error) {
	select {
	case b := <-l.kissOut:
		return copy(p, b), nil
	case <-l.closed:
		return 0, fmt.Errorf("loopbacktnc: closed")
	}
}

func (l *loopbackTnc) Write(p []byte) (int, error) {
	l.hostBuf.Write(p)
	for {
		raw, ok := l.hostBuf.NextFrame()
		if !ok {
			break
		}
		frame, err := kiss.DecodePayload(raw)
		if err != nil {
			continue
		}
		l.core.WriteKiss(frame)
	}
	return len(p), nil
}

// pumpLoop advances a software sample clock: each tick it asks the
// core for the next frame to transmit, shapes it, and immediately
// pushes the resulting samples back through the demodulator.
func (l *loopbackTnc) pumpLoop() {
	var clock int64
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-l.closed:
			return
		case <-ticker.C:
		}

		frame, ok := l.core.ReadTxFrame(clock, l.demod)
		if ok {
			samples, actions := l.modulator.Process(frame, 0, 0)
			for _, s := range samples {
				if decoded, ok := l.demod.Push(s); ok {
					l.core.HandleFrame(decoded.Burst, decoded.Symbols)
				}
			}
			clock += int64(len(samples))
			for _, act := range actions {
				if act.TransmissionWillEnd != nil {
					l.core.OnTransmissionWillEnd(clock, *act.TransmissionWillEnd)
				}
			}
		} else {
			clock += 960 // 20ms at 48kHz
		}

		if l.pttCtl != nil {
			l.pttCtl.SetPTT(l.core.PTT())
		}
	}
}

// kissBridge fans decoded frames out to connected KISS TCP clients and
// feeds client-supplied KISS bytes back into the app's transmit
// handle, publishing lifecycle events to MQTT and metrics along the
// way.
type kissBridge struct {
	log     *logger.Logger
	app     *app.App
	metrics *metrics.Metrics
	mqttPub *mqtt.Publisher
	hub     *statushub.Hub

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func newKissBridge(log *logger.Logger, a *app.App, m *metrics.Metrics, pub *mqtt.Publisher, hub *statushub.Hub) *kissBridge {
	return &kissBridge{log: log, app: a, metrics: m, mqttPub: pub, hub: hub, conns: make(map[net.Conn]struct{})}
}

func (b *kissBridge) AdapterRegistered() {}
func (b *kissBridge) AdapterRemoved()    {}
func (b *kissBridge) TncStarted()        { b.log.Info("tnc started") }
func (b *kissBridge) TncClosed()         { b.log.Info("tnc closed") }

func (b *kissBridge) PacketReceived(linkSetup m17frame.LSF, packetType byte, payload []byte) {
	b.metrics.PacketsReceived.Inc()
	b.metrics.BytesReceived.Add(float64(len(payload)))
	body := bitops.AppendCRC(append([]byte{packetType}, payload...))
	b.broadcast(kiss.NewFullPacket(linkSetup.Bytes(), body))
	b.hub.BroadcastPacket("", "", packetType, len(payload))
	if b.mqttPub != nil {
		_ = b.mqttPub.PublishPacket(mqtt.PacketEvent{PacketType: packetType, Bytes: len(payload), Timestamp: time.Now()})
	}
}

func (b *kissBridge) StreamBegan(linkSetup m17frame.LSF) {
	b.metrics.StreamOpened()
	b.broadcast(kiss.NewStreamSetup(linkSetup.Bytes()))
	b.hub.BroadcastStreamStarted("", "")
	if b.mqttPub != nil {
		_ = b.mqttPub.PublishStreamStarted(mqtt.StreamStartedEvent{Timestamp: time.Now()})
	}
}

func (b *kissBridge) StreamData(frameNumber uint16, isFinal bool, payload [16]byte) {
	b.metrics.PacketsReceived.Inc()
	if isFinal {
		b.metrics.StreamClosed()
		b.hub.BroadcastStreamEnded("", "")
		if b.mqttPub != nil {
			_ = b.mqttPub.PublishStreamEnded(mqtt.StreamEndedEvent{Timestamp: time.Now()})
		}
	}
}

func (b *kissBridge) broadcast(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.conns {
		_, _ = c.Write(frame)
	}
}

func (b *kissBridge) listenTCP(ctx context.Context, port int) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}
		b.mu.Lock()
		b.conns[conn] = struct{}{}
		b.mu.Unlock()
		go b.serveConn(conn)
	}
}

func (b *kissBridge) serveConn(conn net.Conn) {
	defer func() {
		b.mu.Lock()
		delete(b.conns, conn)
		b.mu.Unlock()
		conn.Close()
	}()
	var buf kiss.Buffer
	reader := bufio.NewReader(conn)
	chunk := make([]byte, 4096)
	for {
		n, err := reader.Read(chunk)
		if err != nil {
			return
		}
		buf.Write(chunk[:n])
		for {
			raw, ok := buf.NextFrame()
			if !ok {
				break
			}
			frame, err := kiss.DecodePayload(raw)
			if err != nil {
				continue
			}
			b.handleHostFrame(frame)
		}
	}
}

func (b *kissBridge) handleHostFrame(frame kiss.Frame) {
	switch frame.Port {
	case kiss.PortPacketFull:
		if len(frame.Payload) < m17frame.LSFSize+1 {
			return
		}
		lsf, err := m17frame.ParseLSF(frame.Payload[:m17frame.LSFSize])
		if err != nil {
			return
		}
		body := frame.Payload[m17frame.LSFSize:]
		if err := b.app.Transmit().TransmitPacket(lsf, body[:1], body[1:]); err != nil {
			b.log.Warn("transmit packet rejected", logger.Error(err))
		}
	case kiss.PortStream:
		switch len(frame.Payload) {
		case m17frame.LSFSize:
			lsf, err := m17frame.ParseLSF(frame.Payload)
			if err != nil {
				return
			}
			b.app.Transmit().TransmitStreamStart(lsf)
		case 26:
			parsed, ok := kiss.ParseStreamDataPayload(frame.Payload)
			if !ok {
				return
			}
			b.app.Transmit().TransmitStreamNext(m17frame.StreamFrame{
				LichPart:    parsed.LichPart,
				LichIdx:     parsed.LichIdx,
				FrameNumber: parsed.FrameNumber,
				EndOfStream: parsed.EndOfStream,
				StreamData:  parsed.StreamData,
			})
		}
	}
}

// serveStatusHub runs an HTTP server exposing the status hub's
// WebSocket endpoint at /ws until ctx is cancelled.
func serveStatusHub(ctx context.Context, port int, hub *statushub.Hub, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("status dashboard server error", logger.Error(err))
	}
}
