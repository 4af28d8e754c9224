package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// revealCommand builds the command that opens path in the platform's file manager.
func revealCommand(path string) (*exec.Cmd, error) {
	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.Command("open", path), nil
	case "linux":
		return exec.Command("xdg-open", path), nil
	case "windows":
		return exec.Command("explorer", path), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", rt)
	}
}

// RevealPath opens a directory (usually a batch output root) in the system file manager.
// It does not wait for the file manager to exit.
func RevealPath(path string) error {
	if !IsDir(path) {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidInput, path)
	}
	cmd, err := revealCommand(path)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}
