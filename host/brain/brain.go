// Package brain runs request/reply exchanges with a V5 brain over a
// serial port
package brain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"v5link/host/config"
	"v5link/host/serial"
	"v5link/protocol"
	"v5link/vision"
)

var (
	// ErrClosed is returned once the session or its port has shut down
	ErrClosed = errors.New("brain: session closed")

	// ErrUnexpectedReply means a well-formed frame answered another command
	ErrUnexpectedReply = errors.New("brain: unexpected reply")
)

const (
	resultOK      = "ok"
	resultNack    = "nack"
	resultTimeout = "timeout"
	resultError   = "error"

	// fileNameSize is the fixed name field of file commands
	fileNameSize = 24

	readBufferSize = 256

	// defaultCloseWait bounds how long Close waits for a pending read
	defaultCloseWait = time.Second
)

// Options configures a session. Zero values select CRC-16 framing, no
// request timeout beyond the caller's context, unlimited request rate, the
// game element vocabulary and a no-op logger.
type Options struct {
	Codec          *protocol.Codec
	RequestTimeout time.Duration
	RequestRate    float64 // requests per second, 0 = unlimited
	RequestBurst   int
	Vision         *vision.Decoder
	Logger         *zap.Logger
	Metrics        *Metrics
}

// OptionsFromConfig translates the protocol and vision sections
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	checksum, err := protocol.ChecksumByName(cfg.Protocol.Checksum)
	if err != nil {
		return Options{}, err
	}
	vocab, err := vision.VocabularyByName(cfg.Vision.Vocabulary)
	if err != nil {
		return Options{}, err
	}
	colors, err := parseNames(cfg.Vision.ColorNames)
	if err != nil {
		return Options{}, fmt.Errorf("vision.colorNames: %w", err)
	}
	codes, err := parseNames(cfg.Vision.CodeNames)
	if err != nil {
		return Options{}, fmt.Errorf("vision.codeNames: %w", err)
	}
	return Options{
		Codec:          protocol.NewCodec(protocol.WithChecksum(checksum)),
		RequestTimeout: cfg.Protocol.RequestTimeout,
		RequestRate:    cfg.Protocol.RequestRate,
		RequestBurst:   cfg.Protocol.RequestBurst,
		Vision: &vision.Decoder{
			Vocabulary: vocab,
			ColorNames: colors,
			CodeNames:  codes,
		},
	}, nil
}

func parseNames(in map[string]string) (map[uint8]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[uint8]string, len(in))
	for k, v := range in {
		id, err := strconv.ParseUint(k, 10, 6)
		if err != nil {
			return nil, fmt.Errorf("signature id %q: %w", k, err)
		}
		out[uint8(id)] = v
	}
	return out, nil
}

// Brain is a session with one device. Replies carry no correlation id, so
// exchanges are serialised: one request is in flight at a time.
type Brain struct {
	port    serial.Port
	codec   *protocol.Codec
	timeout time.Duration
	limiter *rate.Limiter
	vision  *vision.Decoder
	log     *zap.Logger
	metrics *Metrics

	// mu serialises exchanges
	mu sync.Mutex

	// Chunks read by readLoop
	rx chan []byte

	readErr   error // set before doneChan closes
	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
	closeWait time.Duration
}

// Open opens the serial port and starts a session on it
func Open(cfg *serial.Config, opts Options) (*Brain, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(port, opts), nil
}

// New starts a session on an already open port. The session owns the port
// and closes it on Close.
func New(port serial.Port, opts Options) *Brain {
	b := &Brain{
		port:      port,
		codec:     opts.Codec,
		timeout:   opts.RequestTimeout,
		vision:    opts.Vision,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		rx:        make(chan []byte, 16),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		closeWait: defaultCloseWait,
	}
	if b.codec == nil {
		b.codec = protocol.DefaultCodec()
	}
	if b.vision == nil {
		b.vision = &vision.Decoder{}
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}

	limit, burst := rate.Inf, opts.RequestBurst
	if opts.RequestRate > 0 {
		limit = rate.Limit(opts.RequestRate)
	}
	if burst <= 0 {
		burst = 1
	}
	b.limiter = rate.NewLimiter(limit, burst)

	go b.readLoop()
	return b
}

// Exchange sends the named command and waits for its reply. A NACK is a
// successful exchange: inspect the reply, or use Execute.
func (b *Brain) Exchange(ctx context.Context, name string, payload []byte) (protocol.Reply, error) {
	spec, err := protocol.Lookup(name)
	if err != nil {
		return protocol.Reply{}, err
	}
	return b.exchange(ctx, spec, payload)
}

// Execute runs an exchange and converts a NACK into a *protocol.NackError.
// For extended commands the leading status byte is stripped from the
// returned data.
func (b *Brain) Execute(ctx context.Context, name string, payload []byte) ([]byte, error) {
	reply, err := b.Exchange(ctx, name, payload)
	if err != nil {
		return nil, err
	}
	return replyData(reply)
}

// SystemVersion reads the firmware version
func (b *Brain) SystemVersion(ctx context.Context) (protocol.SystemVersion, error) {
	data, err := b.Execute(ctx, "SYSTEM_VERSION", nil)
	if err != nil {
		return protocol.SystemVersion{}, err
	}
	return protocol.DecodeSystemVersion(data)
}

// Query polls the brain with QUERY1
func (b *Brain) Query(ctx context.Context) (protocol.Query1, error) {
	data, err := b.Execute(ctx, "QUERY1", nil)
	if err != nil {
		return protocol.Query1{}, err
	}
	return protocol.DecodeQuery1(data)
}

// VisionObjects fetches and decodes the objects the vision sensor
// currently reports
func (b *Brain) VisionObjects(ctx context.Context) ([]vision.Object, error) {
	data, err := b.Execute(ctx, "VISION_OBJECTS", nil)
	if err != nil {
		return nil, err
	}
	return b.vision.DecodeAll(data)
}

// FileInfo looks up a file in volume vid
func (b *Brain) FileInfo(ctx context.Context, vid uint8, name string) (protocol.FileInfo, error) {
	reply, err := b.Exchange(ctx, "FILE_GET_INFO", fileRequest(vid, name))
	if err != nil {
		return protocol.FileInfo{}, err
	}
	if reply.Kind == protocol.KindAck {
		if err := reply.Err(); err != nil {
			return protocol.FileInfo{}, err
		}
		return protocol.FileInfo{}, fmt.Errorf("%w: bare ACK to FILE_GET_INFO", ErrUnexpectedReply)
	}
	return protocol.DecodeFileInfo(reply)
}

// UserFiles returns the number of user files on the brain
func (b *Brain) UserFiles(ctx context.Context) (uint16, error) {
	reply, err := b.Exchange(ctx, "FILE_USER_STAT", nil)
	if err != nil {
		return 0, err
	}
	if reply.Kind == protocol.KindAck {
		return 0, errors.Join(ErrUnexpectedReply, reply.Err())
	}
	return protocol.DecodeUserStat(reply)
}

// Close stops the read loop and closes the port. If a read is still
// blocked after the close wait, Close returns an error and the read loop
// exits as soon as that read returns.
func (b *Brain) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopChan)
		err = b.port.Close()
		select {
		case <-b.doneChan:
		case <-time.After(b.closeWait):
			b.log.Warn("serial read still pending after close", zap.Duration("wait", b.closeWait))
			err = errors.Join(err, fmt.Errorf("brain: read loop did not stop within %v", b.closeWait))
		}
	})
	return err
}

func (b *Brain) exchange(ctx context.Context, spec protocol.CommandSpec, payload []byte) (protocol.Reply, error) {
	frame, err := b.codec.EncodeRequest(spec, payload)
	if err != nil {
		return protocol.Reply{}, fmt.Errorf("exchange %s: %w", spec.Name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.limiter.Wait(ctx); err != nil {
		b.metrics.observe(spec.Name, resultError, 0)
		return protocol.Reply{}, fmt.Errorf("exchange %s: %w", spec.Name, err)
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	b.discardStale()

	start := time.Now()
	reply, err := b.roundTrip(ctx, spec, frame)
	elapsed := time.Since(start)

	fields := []zap.Field{
		zap.String("command", spec.Name),
		zap.Stringer("family", spec.Family),
		zap.Int("sent", len(frame)),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		result := resultError
		if errors.Is(err, context.DeadlineExceeded) {
			result = resultTimeout
		}
		b.metrics.observe(spec.Name, result, elapsed)
		b.log.Warn("exchange failed", append(fields, zap.Error(err))...)
		return protocol.Reply{}, fmt.Errorf("exchange %s: %w", spec.Name, err)
	}

	fields = append(fields, zap.Int("received", reply.Consumed), zap.Stringer("kind", reply.Kind))
	if status, ok := replyStatus(reply); ok && !status.IsAck() {
		b.metrics.observe(spec.Name, resultNack, elapsed)
		b.metrics.nack(spec.Name, status.String())
		b.log.Warn("exchange nack", append(fields, zap.Stringer("status", status))...)
		return reply, nil
	}
	b.metrics.observe(spec.Name, resultOK, elapsed)
	b.log.Debug("exchange", fields...)
	return reply, nil
}

func (b *Brain) roundTrip(ctx context.Context, spec protocol.CommandSpec, frame []byte) (protocol.Reply, error) {
	select {
	case <-b.doneChan:
		return protocol.Reply{}, b.closedErr()
	default:
	}

	n, err := b.port.Write(frame)
	if err != nil {
		return protocol.Reply{}, fmt.Errorf("write: %w", err)
	}
	if n != len(frame) {
		return protocol.Reply{}, fmt.Errorf("incomplete write: %d/%d bytes", n, len(frame))
	}
	b.metrics.sent(n)

	dec := b.codec.NewFrameDecoder(spec.Family)
	for {
		select {
		case chunk := <-b.rx:
			used, err := dec.Write(chunk)
			if err != nil {
				return protocol.Reply{}, err
			}
			if !dec.Done() {
				continue
			}
			if used < len(chunk) {
				b.log.Debug("discarding bytes after reply", zap.Int("bytes", len(chunk)-used))
			}
			reply := dec.Reply()
			if reply.Kind != protocol.KindAck &&
				(reply.Command.Family != spec.Family || reply.Command.Opcode != spec.Opcode) {
				return protocol.Reply{}, fmt.Errorf("%w: got %s", ErrUnexpectedReply, reply.Command)
			}
			return reply, nil

		case <-ctx.Done():
			return protocol.Reply{}, ctx.Err()

		case <-b.doneChan:
			return protocol.Reply{}, b.closedErr()
		}
	}
}

// discardStale drops bytes left over from an abandoned exchange
func (b *Brain) discardStale() {
	for {
		select {
		case chunk := <-b.rx:
			b.log.Debug("discarding stale bytes", zap.Int("bytes", len(chunk)))
		default:
			if err := b.port.Flush(); err != nil {
				b.log.Debug("flush failed", zap.Error(err))
			}
			return
		}
	}
}

// readLoop continuously reads from the port and hands chunks to the
// waiting exchange
func (b *Brain) readLoop() {
	defer close(b.doneChan)

	buffer := make([]byte, readBufferSize)

	for {
		select {
		case <-b.stopChan:
			return
		default:
		}

		n, err := b.port.Read(buffer)
		if n > 0 {
			b.metrics.received(n)
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			select {
			case b.rx <- chunk:
			case <-b.stopChan:
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
				b.readErr = err
				return
			}
			// EOF with no data is an idle read timeout, not a closed port
			if !errors.Is(err, io.EOF) {
				b.log.Warn("serial read failed", zap.Error(err))
			}
			select {
			case <-b.stopChan:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

func (b *Brain) closedErr() error {
	if b.readErr != nil {
		return fmt.Errorf("%w: %v", ErrClosed, b.readErr)
	}
	return ErrClosed
}

// replyData returns the data of a reply, stripping the status byte of
// extended replies and turning a NACK into an error
func replyData(reply protocol.Reply) ([]byte, error) {
	if reply.Kind == protocol.KindAck {
		return nil, reply.Err()
	}
	_, data, err := reply.Extended()
	return data, err
}

// replyStatus reports the acknowledgement status a reply carries, if any
func replyStatus(reply protocol.Reply) (protocol.AckStatus, bool) {
	if reply.Kind == protocol.KindAck {
		return reply.Status, true
	}
	if reply.Command.Family != protocol.FamilyBasic && len(reply.Payload) > 0 {
		return protocol.AckStatus(reply.Payload[0]), true
	}
	return 0, false
}

// fileRequest builds the vid/option/name payload shared by file commands
func fileRequest(vid uint8, name string) []byte {
	out := make([]byte, 2+fileNameSize)
	out[0] = vid
	copy(out[2:], name)
	return out
}
