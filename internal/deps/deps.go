package deps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"normalizer/internal/services"
)

// Requirement defines an external program the normalizer launches.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := Resolve(cmd)
		if err != nil {
			status.Detail = describe(cmd, err)
			results = append(results, status)
			continue
		}
		status.Path = path
		status.Available = true
		results = append(results, status)
	}
	return results
}

func describe(cmd string, err error) string {
	if errors.Is(err, services.ErrBinaryNotFound) {
		return fmt.Sprintf("binary %q not found", cmd)
	}
	return fmt.Sprintf("binary %q not usable", cmd)
}

// Resolve returns the absolute path of command. A command containing a path
// separator must name an existing executable file. A bare name is searched
// for next to the running executable first and then along PATH.
func Resolve(command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", services.Wrap(services.ErrConfiguration, "deps", "resolve", "empty command", nil)
	}
	if strings.ContainsRune(command, os.PathSeparator) {
		abs, err := filepath.Abs(command)
		if err != nil {
			return "", services.Wrap(services.ErrConfiguration, "deps", "resolve", command, err)
		}
		if err := checkExecutable(abs); err != nil {
			return "", err
		}
		return abs, nil
	}
	for _, dir := range searchDirs() {
		candidate := filepath.Join(dir, command)
		if checkExecutable(candidate) == nil {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrBinaryNotFound, "deps", "resolve", fmt.Sprintf("%s not found beside the executable or in PATH", command), nil)
}

func searchDirs() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			dir = "."
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrBinaryNotFound, "deps", "resolve", path, err)
		}
		return services.Wrap(services.ErrConfiguration, "deps", "resolve", path, err)
	}
	if !info.Mode().IsRegular() {
		return services.Wrap(services.ErrConfiguration, "deps", "resolve", fmt.Sprintf("%s is not a file", path), nil)
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return services.Wrap(services.ErrConfiguration, "deps", "resolve", fmt.Sprintf("%s is not executable", path), err)
	}
	return nil
}
