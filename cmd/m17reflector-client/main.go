// Command m17reflector-client bridges an M17 reflector to a local KISS
// TCP client: it presents the reflector connection as an RF-like TNC
// to pkg/app, and exposes the usual KISS stream for host software.
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
	"m17/pkg/mqtt"
	"m17/pkg/reflectorclient"
	"m17/pkg/statushub"
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
		fmt.Printf("m17reflector-client %s (%s)\n", version, gitCommit)
		os.Exit(0)
	}

	log := logger.New(logger.Config{Level: "info", Format: "text"})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("failed to load configuration", logger.Error(err))
		os.Exit(1)
	}
	log = logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if !cfg.Reflector.Enabled {
		log.Error("reflector.enabled is false; nothing to do")
		os.Exit(1)
	}

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

	module := byte(cfg.Reflector.Module[0])
	client := reflectorclient.New(log.WithComponent("reflector"), cfg.Reflector.HostPort, cfg.Reflector.Callsign, module)
	a := app.New(client)

	bridge := newKissBridge(log.WithComponent("kissbridge"), a, m, mqttPub, hub)
	a.RegisterPacketAdapter(bridge)
	a.RegisterStreamAdapter(bridge)

	if err := a.Start(); err != nil {
		log.Error("failed to start app", logger.Error(err))
		os.Exit(1)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		reportReflectorStatus(ctx, client, m, mqttPub, hub, log.WithComponent("reflector"))
	}()

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

	log.Info("m17reflector-client started",
		logger.String("hostport", cfg.Reflector.HostPort),
		logger.String("callsign", cfg.Reflector.Callsign),
		logger.String("module", cfg.Reflector.Module))

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))
	cancel()
	_ = a.Close()
	if mqttPub != nil {
		mqttPub.Stop()
	}
	wg.Wait()
	log.Info("m17reflector-client stopped")
}

// reportReflectorStatus polls the client's outer connection status and
// forwards transitions to metrics and MQTT.
func reportReflectorStatus(ctx context.Context, client *reflectorclient.Client, m *metrics.Metrics, pub *mqtt.Publisher, hub *statushub.Hub, log *logger.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	last := reflectorclient.StatusConnecting
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		status := client.Status()
		if status == last {
			continue
		}
		last = status
		connected := status == reflectorclient.StatusConnected
		m.SetReflectorConnected(connected)
		log.Info("reflector status changed", logger.Int("status", int(status)))
		hub.BroadcastReflectorStatus(connected, "")
		if pub != nil {
			_ = pub.PublishReflectorStatus(mqtt.ReflectorStatusEvent{Connected: connected, Timestamp: time.Now()})
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
