// Package device implements the ecoNET register client: sessioned
// read and write transactions with retry, backoff, and a last-known
// fallback per register.
package device

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/boilerlink/econetd/internal/econet/frame"
	"github.com/boilerlink/econetd/internal/econet/transport"
	"github.com/boilerlink/econetd/internal/econet/value"
	"github.com/boilerlink/econetd/internal/observability"
	"github.com/boilerlink/econetd/internal/regmap"
)

const (
	FuncReadValue  = 0x43
	FuncWriteForce = 0x29

	DefaultDest uint16 = 1
	DefaultSrc  uint16 = 100
	DefaultPort        = 8899

	// sessionModulo wraps the transaction counter. It only needs to
	// avoid colliding with the immediately preceding exchange.
	sessionModulo = 65000
	sessionStart  = 10

	// respValueOffset is where the value bytes start in a 0x43
	// response payload; the device echoes session id, status, count
	// and register id first.
	respValueOffset = 7

	readBackoffStep = 200 * time.Millisecond
	writeAttempts   = 3
	writeBackoff    = time.Second
	DefaultTimeout  = 2 * time.Second
)

// wire is the transport surface the client needs; satisfied by
// *transport.Conn and by test fakes.
type wire interface {
	Send(f frame.Frame, timeout time.Duration) error
	Receive(timeout time.Duration) (frame.Frame, error)
	Close() error
}

// Config carries the connection and credential settings for one
// device module.
type Config struct {
	Addr     string
	Username string
	Password string
	Dest     uint16
	Src      uint16
	Timeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.Dest == 0 {
		c.Dest = DefaultDest
	}
	if c.Src == 0 {
		c.Src = DefaultSrc
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Client reads and writes registers on one device. A mutex serializes
// transactions: the module cannot handle pipelined exchanges.
type Client struct {
	cfg  Config
	regs *regmap.Map
	log  zerolog.Logger
	dial func() (wire, error)

	txMu    sync.Mutex
	session uint16

	knownMu   sync.Mutex
	lastKnown map[string]value.Value
}

// New builds a client that opens one TCP connection per transaction,
// matching the module's expectation of short exchanges.
func New(cfg Config, regs *regmap.Map, log zerolog.Logger) *Client {
	cfg.applyDefaults()
	c := &Client{
		cfg:       cfg,
		regs:      regs,
		log:       log,
		session:   sessionStart,
		lastKnown: make(map[string]value.Value),
	}
	c.dial = func() (wire, error) {
		return transport.Dial(cfg.Addr, cfg.Timeout, log)
	}
	return c
}

// newWithDialer is the test seam.
func newWithDialer(cfg Config, regs *regmap.Map, log zerolog.Logger, dial func() (wire, error)) *Client {
	c := New(cfg, regs, log)
	c.dial = dial
	return c
}

// GetValue reads a register, retrying up to retries attempts with
// linearly increasing backoff. A slug absent from the register map
// returns Absent immediately: the register does not exist on this
// device, which is not an error. When every attempt fails, the last
// value this client ever read for the slug is returned instead.
func (c *Client) GetValue(ctx context.Context, slug string, retries int) value.Value {
	def, ok := c.regs.Lookup(slug)
	if !ok {
		return value.Absent()
	}
	if retries < 1 {
		retries = 1
	}

	for attempt := 1; attempt <= retries; attempt++ {
		v := c.readOnce(def)
		if !v.IsAbsent() {
			c.knownMu.Lock()
			c.lastKnown[slug] = v
			c.knownMu.Unlock()
			return v
		}
		c.log.Debug().Str("slug", slug).Int("attempt", attempt).Msg("read failed")
		if attempt < retries {
			if !sleepCtx(ctx, time.Duration(attempt)*readBackoffStep) {
				break
			}
		}
	}

	c.knownMu.Lock()
	defer c.knownMu.Unlock()
	return c.lastKnown[slug]
}

// SetValue writes a register. Success means the device acknowledged
// receipt; the 0x29 command does not echo the applied value, so
// confirming the write took effect is the coordinator's job.
func (c *Client) SetValue(ctx context.Context, slug string, v value.Value) bool {
	def, ok := c.regs.Lookup(slug)
	if !ok {
		return false
	}
	encoded, err := value.Encode(v, def.Type, def.Exponent)
	if err != nil {
		c.log.Warn().Str("slug", slug).Err(err).Msg("cannot encode value")
		return false
	}

	payload := make([]byte, 0, len(c.cfg.Username)+len(c.cfg.Password)+5+len(encoded))
	payload = append(payload, c.cfg.Username...)
	payload = append(payload, 0x00)
	payload = append(payload, c.cfg.Password...)
	payload = append(payload, 0x00)
	payload = append(payload, 0x01)
	payload = binary.LittleEndian.AppendUint16(payload, def.ID)
	payload = append(payload, encoded...)

	for attempt := 1; attempt <= writeAttempts; attempt++ {
		_, err := c.transact(FuncWriteForce, payload)
		if err == nil {
			return true
		}
		c.log.Debug().Str("slug", slug).Int("attempt", attempt).Err(err).Msg("write failed")
		if attempt < writeAttempts {
			if !sleepCtx(ctx, writeBackoff) {
				return false
			}
		}
	}
	return false
}

// readOnce performs a single read transaction and decodes the result.
func (c *Client) readOnce(def regmap.Definition) value.Value {
	payload := make([]byte, 0, 7)
	// session id is claimed in transact; reserve its slot here and
	// fill it just before sending.
	payload = append(payload, 0, 0, 0x01, 0x01)
	payload = binary.LittleEndian.AppendUint16(payload, def.ID)

	resp, err := c.transactSessioned(FuncReadValue, payload)
	if err != nil {
		return value.Absent()
	}
	if len(resp.Payload) <= respValueOffset {
		return value.Absent()
	}
	return value.Decode(resp.Payload[respValueOffset:], def.Type, def.Exponent)
}

// transactSessioned stamps the wrapped session counter into the first
// two payload bytes before sending.
func (c *Client) transactSessioned(fn byte, payload []byte) (frame.Frame, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	c.session = (c.session + 1) % sessionModulo
	binary.LittleEndian.PutUint16(payload[:2], c.session)
	return c.exchange(fn, payload)
}

func (c *Client) transact(fn byte, payload []byte) (frame.Frame, error) {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	c.session = (c.session + 1) % sessionModulo
	return c.exchange(fn, payload)
}

// exchange runs one request/response cycle on a fresh connection.
// Callers hold txMu: at most one in-flight exchange per device.
func (c *Client) exchange(fn byte, payload []byte) (frame.Frame, error) {
	start := time.Now()
	name := funcName(fn)

	conn, err := c.dial()
	if err != nil {
		observability.RecordTransaction(name, err, time.Since(start))
		return frame.Frame{}, err
	}
	defer conn.Close()

	req := frame.Frame{Dest: c.cfg.Dest, Src: c.cfg.Src, Func: fn, Payload: payload}
	if err := conn.Send(req, c.cfg.Timeout); err != nil {
		observability.RecordTransaction(name, err, time.Since(start))
		return frame.Frame{}, err
	}
	resp, err := conn.Receive(c.cfg.Timeout)
	observability.RecordTransaction(name, err, time.Since(start))
	if err != nil {
		return frame.Frame{}, err
	}
	return resp, nil
}

func funcName(fn byte) string {
	switch fn {
	case FuncReadValue:
		return "read"
	case FuncWriteForce:
		return "write"
	default:
		return "other"
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first; reports whether
// the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
