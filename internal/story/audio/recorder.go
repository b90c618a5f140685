package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// recordTool is a command-line recorder writing 16 kHz mono wav to a file.
type recordTool struct {
	name string
	args func(out string) []string
}

var (
	arecordTool = recordTool{
		name: "arecord",
		args: func(out string) []string {
			return []string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "wav", out}
		},
	}
	soxTool = recordTool{
		name: "rec",
		args: func(out string) []string {
			return []string{"-q", "-c", "1", "-r", "16000", out}
		},
	}
	recorderCandidates = []recordTool{arecordTool, soxTool}
)

// ExecRecorder records through an external tool such as arecord or sox.
type ExecRecorder struct {
	tools []recordTool

	mu   sync.Mutex
	cmd  *exec.Cmd
	out  string
	done chan error
}

func newExecRecorder(tools ...recordTool) *ExecRecorder {
	return &ExecRecorder{tools: tools}
}

func (e *ExecRecorder) find() (recordTool, string, error) {
	for _, t := range e.tools {
		if p, err := exec.LookPath(t.name); err == nil {
			return t, p, nil
		}
	}
	return recordTool{}, "", fmt.Errorf("no recorder executable found in PATH")
}

func (e *ExecRecorder) Probe() Capability {
	if _, _, err := e.find(); err != nil {
		names := make([]string, 0, len(e.tools))
		for _, t := range e.tools {
			names = append(names, t.name)
		}
		return Capability{Reason: fmt.Sprintf("Recording needs one of %v installed", names)}
	}
	return Capability{Supported: true}
}

func (e *ExecRecorder) Start(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return fmt.Errorf("already recording")
	}

	tool, bin, err := e.find()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecordingUnsupported, err)
	}

	f, err := os.CreateTemp("", "storytalk-*.wav")
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}
	f.Close()

	// not tied to ctx: recording outlives the call that started it
	cmd := exec.Command(bin, tool.args(f.Name())...)
	if err := cmd.Start(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to start %s: %w", tool.name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	e.cmd = cmd
	e.out = f.Name()
	e.done = done

	logrus.WithFields(logrus.Fields{"tool": tool.name, "file": f.Name()}).Debug("Recording started")
	return nil
}

// Stop interrupts the recorder so it finalizes the wav header, then returns the clip.
func (e *ExecRecorder) Stop() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil {
		return nil, fmt.Errorf("not recording")
	}
	defer func() {
		os.Remove(e.out)
		e.cmd = nil
		e.out = ""
		e.done = nil
	}()

	if err := interruptProcess(e.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logrus.WithError(err).Warn("Failed to interrupt recorder")
	}

	select {
	case <-e.done:
		// interrupted recorders exit non-zero; the file is what matters
	case <-time.After(3 * time.Second):
		_ = e.cmd.Process.Kill()
		<-e.done
	}

	data, err := os.ReadFile(e.out)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("recording is empty")
	}
	return data, nil
}

func (e *ExecRecorder) IsRecording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmd != nil
}

func (e *ExecRecorder) Ext() string {
	return ".wav"
}
