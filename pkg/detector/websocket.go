package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// wsDetector keeps a single connection to a layout inference service and
// exchanges one JSON request/response pair per prediction.
type wsDetector struct {
	cfg          Config
	log          *logrus.Logger
	conn         *websocket.Conn
	mu           sync.Mutex
	pingInterval time.Duration
	writeTimeout time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

func newWSDetector(cfg Config, log *logrus.Logger) (Detector, error) {
	if cfg.WSURL == "" {
		return nil, fmt.Errorf("ws backend requires LAYOUT_WS_URL")
	}

	d := &wsDetector{
		cfg:          cfg,
		log:          log,
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
		done:         make(chan struct{}),
	}

	if err := d.Reconnect(); err != nil {
		log.Warnf("Initial connection to layout service failed: %v. Will retry on demand.", err)
	} else {
		log.Info("Successfully connected to layout service")
	}

	return d, nil
}

func (d *wsDetector) ModelName() string {
	return d.cfg.ModelName
}

func (d *wsDetector) Device() string {
	return deviceName(d.cfg.UseGPU)
}

func (d *wsDetector) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

func (d *wsDetector) Reconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}

	d.log.Infof("Connecting to layout service at %s", d.cfg.WSURL)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(d.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", d.cfg.WSURL, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(d.writeTimeout)); err != nil {
			d.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	d.conn = conn
	go d.keepAlive(conn)

	return nil
}

func (d *wsDetector) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(d.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
		}

		d.mu.Lock()
		if d.conn != conn {
			d.mu.Unlock()
			return
		}

		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(d.writeTimeout)); err != nil {
			d.log.Warnf("Ping failed for layout service, marking connection as dead: %v", err)
			d.conn = nil
			conn.Close()
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
	}
}

func (d *wsDetector) connection() (*websocket.Conn, error) {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()

	if conn != nil {
		return conn, nil
	}

	if err := d.Reconnect(); err != nil {
		return nil, fmt.Errorf("cannot connect to layout service: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil, fmt.Errorf("not connected to layout service")
	}
	return d.conn, nil
}

func (d *wsDetector) dropConnection(conn *websocket.Conn) {
	if d.conn == conn {
		d.conn = nil
	}
	conn.Close()
}

// Predict holds the connection lock for the whole exchange so concurrent
// requests cannot interleave frames on the shared socket.
func (d *wsDetector) Predict(ctx context.Context, inputPath string, opts PredictOptions) ([]PageResult, error) {
	payload, err := newRemoteRequest(inputPath, d.cfg.ModelName, opts)
	if err != nil {
		return nil, err
	}

	conn, err := d.connection()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(d.cfg.RequestTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(payload); err != nil {
		d.dropConnection(conn)
		return nil, fmt.Errorf("error sending layout request: %w", err)
	}

	conn.SetReadDeadline(deadline)
	var envelope remoteEnvelope
	if err := conn.ReadJSON(&envelope); err != nil {
		d.dropConnection(conn)
		return nil, fmt.Errorf("error reading layout response: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	d.log.WithFields(logrus.Fields{
		"log_id": envelope.LogID,
		"pages":  resultCount(&envelope),
	}).Debug("Received response from layout service")

	return envelope.pages(inputPath, DocLayoutLabels)
}

func (d *wsDetector) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
	})

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}
