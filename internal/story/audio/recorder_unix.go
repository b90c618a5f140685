//go:build unix

package audio

import (
	"os"
	"syscall"
)

// interruptProcess asks the recorder to finish its file on Unix systems
func interruptProcess(p *os.Process) error {
	return p.Signal(syscall.SIGINT)
}
