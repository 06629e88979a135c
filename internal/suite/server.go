package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ServerConfig describes a background process that must be up while the
// suites run, such as the application under test.
type ServerConfig struct {
	Command      string
	Dir          string
	Env          []string
	ReadyDelay   time.Duration // fixed wait after start
	ReadyURL     string        // polled after ReadyDelay until it answers 2xx/3xx
	ReadyTimeout time.Duration // bound on ReadyURL polling
	StopGrace    time.Duration // time between SIGTERM and kill
}

const (
	defaultReadyTimeout = 30 * time.Second
	defaultStopGrace    = 5 * time.Second
	readyPollInterval   = 250 * time.Millisecond
)

// Server is a running background process.
type Server struct {
	cfg    ServerConfig
	cmd    *exec.Cmd
	logger *zap.Logger

	done    chan struct{}
	waitErr error
	flush   func()

	stopOnce sync.Once
	stopErr  error
}

// StartServer launches the server and blocks until it is ready. A server
// that exits early or never becomes ready is stopped and reported as a
// *FatalError.
func StartServer(ctx context.Context, cfg ServerConfig, stdout, stderr io.Writer, logger *zap.Logger) (*Server, error) {
	if cfg.Command == "" {
		return nil, &FatalError{Op: "start server", Err: errors.New("command is required")}
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	var mu sync.Mutex
	out := newLineWriter(&mu, stdout, "[server] ", nil)
	errOut := newLineWriter(&mu, stderr, "[server-ERROR] ", nil)

	cmd := buildCmd(context.Background(), Command{Shell: cfg.Command})
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	cmd.Stdout = out
	cmd.Stderr = errOut
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	s := &Server{
		cfg:    cfg,
		cmd:    cmd,
		logger: logger.With(zap.String("server", cfg.Command)),
		done:   make(chan struct{}),
		flush: func() {
			_ = out.Flush()
			_ = errOut.Flush()
		},
	}

	if err := cmd.Start(); err != nil {
		return nil, &FatalError{Op: "start server", Err: err}
	}
	s.logger.Info("server started", zap.Int("pid", cmd.Process.Pid))

	go func() {
		s.waitErr = cmd.Wait()
		s.flush()
		close(s.done)
	}()

	if err := s.waitReady(ctx); err != nil {
		_ = s.Stop()
		return nil, &FatalError{Op: "start server", Err: err}
	}
	return s, nil
}

func (s *Server) waitReady(ctx context.Context) error {
	if s.cfg.ReadyDelay > 0 {
		timer := time.NewTimer(s.cfg.ReadyDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.done:
			return s.exitedEarly()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.cfg.ReadyURL == "" {
		select {
		case <-s.done:
			return s.exitedEarly()
		default:
			return nil
		}
	}

	pollCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()
	transport := &http.Transport{DisableKeepAlives: true}
	defer transport.CloseIdleConnections()
	client := &http.Client{Timeout: readyPollInterval * 4, Transport: transport}
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if ok := s.probe(pollCtx, client); ok {
			s.logger.Info("server ready", zap.String("url", s.cfg.ReadyURL))
			return nil
		}
		select {
		case <-ticker.C:
		case <-s.done:
			return s.exitedEarly()
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%s not ready after %s", s.cfg.ReadyURL, s.cfg.ReadyTimeout)
		}
	}
}

func (s *Server) probe(ctx context.Context, client *http.Client) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.ReadyURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		s.logger.Debug("server not ready", zap.Error(err))
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode < http.StatusBadRequest
}

func (s *Server) exitedEarly() error {
	if s.waitErr != nil {
		return fmt.Errorf("server exited before becoming ready: %w", s.waitErr)
	}
	return errors.New("server exited before becoming ready")
}

// Stop terminates the server: SIGTERM to its process group, then a kill after
// the grace period. It is safe to call more than once.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		select {
		case <-s.done:
			return
		default:
		}

		if err := terminate(s.cmd); err != nil {
			s.logger.Debug("terminate server", zap.Error(err))
		}
		timer := time.NewTimer(s.cfg.StopGrace)
		defer timer.Stop()
		select {
		case <-s.done:
		case <-timer.C:
			s.logger.Warn("server ignored SIGTERM, killing", zap.Duration("grace", s.cfg.StopGrace))
			if err := kill(s.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
				s.stopErr = fmt.Errorf("kill server: %w", err)
			}
			<-s.done
		}
		s.logger.Info("server stopped")
	})
	return s.stopErr
}

// Done is closed once the server process has exited.
func (s *Server) Done() <-chan struct{} {
	return s.done
}
