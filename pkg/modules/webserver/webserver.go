// Package webserver runs the static file server as a child process so it can
// never block the supervisor loop.
package webserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/pira/pkg/module"
)

const Name = "webserver"

// Defaults.
const (
	DefaultPort      = 80
	DefaultDirectory = "/data"
	DefaultBinary    = "pira-web"

	stopTimeout = 5 * time.Second
)

// Webserver supervises the pira-web child process.
type Webserver struct {
	binary string
	args   []string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// New is the module factory. The server is started immediately.
func New(st module.Station) (module.Module, error) {
	cfg := st.Config()
	v := cfg.Values

	port := v.Int("WEBSERVER_PORT", DefaultPort)
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid WEBSERVER_PORT %d", port)
	}

	w := &Webserver{
		binary: v.String("WEBSERVER_BINARY", DefaultBinary),
		args: []string{
			"-addr", ":" + strconv.Itoa(port),
			"-dir", v.String("WEBSERVER_DIRECTORY", DefaultDirectory),
			"-state", cfg.StatePath,
			"-db", cfg.DBPath,
		},
	}
	if err := w.start(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Webserver) start() error {
	cmd := exec.Command(w.binary, w.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", w.binary, err)
	}

	done := make(chan struct{})
	w.mu.Lock()
	w.cmd, w.done, w.err = cmd, done, nil
	w.mu.Unlock()

	go func() {
		err := cmd.Wait()
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
		close(done)
	}()

	log.Info().Str("binary", w.binary).Strs("args", w.args).Int("pid", cmd.Process.Pid).Msg("Web server started")
	return nil
}

// Running reports whether the child process is alive.
func (w *Webserver) Running() bool {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Process restarts the server if it exited since the last iteration.
func (w *Webserver) Process(_ context.Context, _ *module.Registry) error {
	if w.Running() {
		return nil
	}
	w.mu.Lock()
	exitErr := w.err
	w.mu.Unlock()
	log.Warn().Err(exitErr).Msg("Web server exited, restarting")
	return w.start()
}

// Shutdown stops the server, killing it if it ignores the interrupt.
func (w *Webserver) Shutdown(_ context.Context, _ *module.Registry) error {
	w.mu.Lock()
	cmd, done := w.cmd, w.done
	w.mu.Unlock()
	if cmd == nil || !w.Running() {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn().Err(err).Msg("Failed to interrupt web server")
	}
	select {
	case <-done:
		return nil
	case <-time.After(stopTimeout):
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill web server: %w", err)
	}
	<-done
	return nil
}
