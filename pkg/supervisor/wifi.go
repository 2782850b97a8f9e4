package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog/log"
)

// Wifi brings networking up and down.
type Wifi interface {
	Start() error
	Stop() error
}

// ScriptWifi runs a networking script as a child process.
type ScriptWifi struct {
	Path string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func (w *ScriptWifi) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd != nil {
		return nil
	}

	cmd := exec.Command(w.Path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", w.Path, err)
	}

	done := make(chan struct{})
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Warn().Err(err).Str("script", w.Path).Msg("Wifi script exited")
		}
		close(done)
	}()
	w.cmd, w.done = cmd, done
	return nil
}

// Stop kills the script if it is still running.
func (w *ScriptWifi) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd == nil {
		return nil
	}
	select {
	case <-w.done:
		return nil
	default:
	}
	if err := w.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-w.done
	return nil
}
