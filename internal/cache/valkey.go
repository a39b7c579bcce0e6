package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyProvider implements Provider against a Valkey/Redis-compatible server
// using a minimal RESP codec. Connections are short-lived: one dial per
// operation keeps the provider state-free and safe for concurrent use.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the Valkey server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// NewValkeyProvider creates a Provider and pings the target once to fail fast
// on bad credentials or connectivity.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	provider := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := provider.do(ctx, func(conn *respConn) error {
		reply, err := conn.roundTrip("PING")
		if err != nil {
			return err
		}
		if reply.kind != kindSimple || string(reply.data) != "PONG" {
			return fmt.Errorf("unexpected PING response: %s", reply.data)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return provider, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.do(ctx, func(conn *respConn) error {
		reply, err := conn.roundTrip("GET", key)
		if err != nil {
			return err
		}
		switch reply.kind {
		case kindNil:
			return ErrCacheMiss
		case kindBulk:
			payload = reply.data
			return nil
		default:
			return fmt.Errorf("unexpected GET reply kind %q", reply.kind)
		}
	})
	return payload, err
}

// Set stores bytes under key with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.do(ctx, func(conn *respConn) error {
		args := []string{key, string(value)}
		if ttl > 0 {
			args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
		}
		reply, err := conn.roundTrip("SET", args...)
		if err != nil {
			return err
		}
		if reply.kind != kindSimple || string(reply.data) != "OK" {
			return fmt.Errorf("unexpected SET response: %s", reply.data)
		}
		return nil
	})
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	return p.do(ctx, func(conn *respConn) error {
		_, err := conn.roundTrip("DEL", key)
		return err
	})
}

// Close is a no-op; the provider holds no long-lived connections.
func (p *ValkeyProvider) Close() error { return nil }

func (p *ValkeyProvider) do(ctx context.Context, fn func(*respConn) error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := p.dial(ctx)
		if err == nil {
			err = p.handshake(conn)
			if err == nil {
				err = fn(conn)
			}
			conn.close()
			if err == nil {
				return nil
			}
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
	}
	return lastErr
}

func (p *ValkeyProvider) dial(ctx context.Context) (*respConn, error) {
	dialer := net.Dialer{Timeout: p.cfg.DialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		host := p.cfg.Addr
		if h, _, splitErr := net.SplitHostPort(p.cfg.Addr); splitErr == nil {
			host = h
		}
		conn, err = tls.DialWithDialer(&dialer, "tcp", p.cfg.Addr, &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}
	return &respConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
	}, nil
}

func (p *ValkeyProvider) handshake(conn *respConn) error {
	if p.cfg.Password != "" {
		args := []string{p.cfg.Password}
		if p.cfg.Username != "" {
			args = []string{p.cfg.Username, p.cfg.Password}
		}
		reply, err := conn.roundTrip("AUTH", args...)
		if err != nil {
			return err
		}
		if reply.kind != kindSimple || !strings.EqualFold(string(reply.data), "OK") {
			return fmt.Errorf("auth failed: %s", reply.data)
		}
	}
	if p.cfg.DB > 0 {
		reply, err := conn.roundTrip("SELECT", strconv.Itoa(p.cfg.DB))
		if err != nil {
			return err
		}
		if reply.kind != kindSimple || !strings.EqualFold(string(reply.data), "OK") {
			return fmt.Errorf("select failed: %s", reply.data)
		}
	}
	return nil
}

type replyKind byte

const (
	kindSimple replyKind = '+'
	kindBulk   replyKind = '$'
	kindInt    replyKind = ':'
	kindNil    replyKind = '_'
)

type reply struct {
	kind replyKind
	data []byte
}

// respConn wraps a network connection with a RESP request/reply helper.
type respConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writer       *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *respConn) close() {
	if c != nil && c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *respConn) roundTrip(command string, args ...string) (reply, error) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return reply{}, err
	}
	fmt.Fprintf(c.writer, "*%d\r\n", len(args)+1)
	fmt.Fprintf(c.writer, "$%d\r\n%s\r\n", len(command), command)
	for _, arg := range args {
		fmt.Fprintf(c.writer, "$%d\r\n%s\r\n", len(arg), arg)
	}
	if err := c.writer.Flush(); err != nil {
		return reply{}, err
	}
	return c.readReply()
}

func (c *respConn) readReply() (reply, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return reply{}, err
	}
	prefix, err := c.reader.ReadByte()
	if err != nil {
		return reply{}, err
	}
	switch prefix {
	case '+':
		line, err := c.readLine()
		return reply{kind: kindSimple, data: line}, err
	case '-':
		line, err := c.readLine()
		if err != nil {
			return reply{}, err
		}
		return reply{}, errors.New(string(line))
	case ':':
		line, err := c.readLine()
		return reply{kind: kindInt, data: line}, err
	case '$':
		line, err := c.readLine()
		if err != nil {
			return reply{}, err
		}
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return reply{}, err
		}
		if size < 0 {
			return reply{kind: kindNil}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			return reply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return reply{}, fmt.Errorf("invalid bulk termination")
		}
		return reply{kind: kindBulk, data: buf[:size]}, nil
	default:
		return reply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func (c *respConn) readLine() ([]byte, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func retryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
