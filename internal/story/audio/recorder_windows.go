//go:build windows

package audio

import "os"

// interruptProcess stops the recorder on Windows, which has no SIGINT for child processes
func interruptProcess(p *os.Process) error {
	return p.Kill()
}
