package rcon

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultMinInterval spaces consecutive dispatches on one connection.
const DefaultMinInterval = 125 * time.Millisecond

const queueSize = 1024

var tracer = otel.Tracer("csrcon/internal/rcon")

type result struct {
	response string
	err      error
}

type request struct {
	ctx     context.Context
	id      uuid.UUID
	command string
	done    chan result
}

// Scheduler serializes commands onto one Transport: one in flight, FIFO,
// dispatches spaced by at least minInterval.
type Scheduler struct {
	serverID    int
	transport   Transport
	minInterval time.Duration
	limiter     *rate.Limiter
	onFault   func(error)
	log       *zap.Logger

	queue chan *request

	stopOnce sync.Once
	stop     context.CancelFunc
	stopCtx  context.Context
	finished chan struct{}
}

// NewScheduler starts the dispatch loop. onFault is called from the loop for
// every transport error that is not a plain command rejection.
func NewScheduler(serverID int, t Transport, minInterval time.Duration, onFault func(error), log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		serverID:    serverID,
		transport:   t,
		minInterval: minInterval,
		limiter:     rate.NewLimiter(rate.Every(minInterval), 1),
		onFault:     onFault,
		log:         log,
		queue:       make(chan *request, queueSize),
		stop:        cancel,
		stopCtx:     ctx,
		finished:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Execute queues command and waits for its response. Cancelling ctx stops
// the wait; a command already dispatched still runs to completion.
func (s *Scheduler) Execute(ctx context.Context, command string) (string, error) {
	req := &request{
		ctx:     ctx,
		id:      uuid.New(),
		command: command,
		done:    make(chan result, 1),
	}

	select {
	case <-s.stopCtx.Done():
		return "", ErrConnectionClosed
	default:
	}

	select {
	case s.queue <- req:
	case <-s.stopCtx.Done():
		return "", ErrConnectionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case res := <-req.done:
		return res.response, res.err
	case <-s.finished:
		// the loop drains before finishing, so a queued request is either
		// answered already or arrived too late
		select {
		case res := <-req.done:
			return res.response, res.err
		default:
			return "", ErrConnectionClosed
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Stop ends the loop after the in-flight command and rejects everything
// still queued. It blocks until the loop has exited and must not be called
// from onFault.
func (s *Scheduler) Stop() {
	s.halt()
	<-s.finished
}

func (s *Scheduler) halt() {
	s.stopOnce.Do(s.stop)
}

func (s *Scheduler) run() {
	defer close(s.finished)
	defer s.drain()

	// when the previous dispatch returned
	var last time.Time
	for {
		select {
		case <-s.stopCtx.Done():
			return
		case req := <-s.queue:
			if err := req.ctx.Err(); err != nil {
				req.done <- result{err: err}
				continue
			}
			if err := s.limiter.Wait(s.stopCtx); err != nil {
				req.done <- result{err: ErrConnectionClosed}
				return
			}
			if err := s.spaceAfter(last); err != nil {
				req.done <- result{err: err}
				return
			}
			if err := req.ctx.Err(); err != nil {
				req.done <- result{err: err}
				continue
			}
			s.dispatch(req)
			last = time.Now()
		}
	}
}

// spaceAfter blocks until minInterval has passed since last.
func (s *Scheduler) spaceAfter(last time.Time) error {
	if last.IsZero() {
		return nil
	}
	wait := time.Until(last.Add(s.minInterval))
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-s.stopCtx.Done():
		return ErrConnectionClosed
	}
}

func (s *Scheduler) dispatch(req *request) {
	_, span := tracer.Start(req.ctx, "rcon.execute", trace.WithAttributes(
		attribute.Int("rcon.server_id", s.serverID),
		attribute.String("rcon.command", verb(req.command)),
		attribute.String("rcon.request_id", req.id.String()),
	))
	defer span.End()

	s.log.Debug("dispatching command",
		zap.Int("server", s.serverID),
		zap.String("request_id", req.id.String()),
		zap.String("cmd", verb(req.command)),
	)

	response, err := s.transport.Execute(req.command)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Debug("command failed",
			zap.Int("server", s.serverID),
			zap.String("request_id", req.id.String()),
			zap.Error(err),
		)
	}
	req.done <- result{response: response, err: err}

	if err != nil && s.onFault != nil {
		if _, fault := classifyFault(err); fault {
			s.onFault(err)
		}
	}
}

func (s *Scheduler) drain() {
	for {
		select {
		case req := <-s.queue:
			req.done <- result{err: ErrConnectionClosed}
		default:
			return
		}
	}
}

// verb is the command name without arguments, safe to log and trace.
func verb(command string) string {
	if i := strings.IndexByte(command, ' '); i >= 0 {
		return command[:i]
	}
	return command
}
