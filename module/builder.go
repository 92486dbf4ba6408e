package module

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// BuildRequest describes one background build.
type BuildRequest struct {
	Module     string
	SourceRoot string
	Output     string
	// Generation is never reused by a host, even after a failed build or
	// load. Together with Session, which differs per host, it can key a
	// plugin path.
	Generation uint64
	Session    string
}

// Builder compiles a module's sources into an artifact and returns the
// artifact path.
type Builder interface {
	Build(ctx context.Context, req BuildRequest) (string, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, req BuildRequest) (string, error)

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context, req BuildRequest) (string, error) {
	return f(ctx, req)
}

// DefaultBuildCommand builds a Go plugin with a plugin path unique to the
// host session and generation.
var DefaultBuildCommand = []string{
	"go", "build", "-buildmode=plugin",
	"-ldflags=-pluginpath={module}.{session}.{generation}",
	"-o", "{output}", ".",
}

// CommandBuilder runs an external build command in the source root.
// Arguments may contain {module}, {source}, {output}, {session} and
// {generation}.
type CommandBuilder struct {
	Command []string
	Env     []string
}

// Build implements Builder.
func (b CommandBuilder) Build(ctx context.Context, req BuildRequest) (string, error) {
	command := b.Command
	if len(command) == 0 {
		command = DefaultBuildCommand
	}
	if req.Output == "" {
		return "", &BuildError{Module: req.Module, Err: errors.New("no build output path")}
	}

	r := strings.NewReplacer(
		"{module}", req.Module,
		"{source}", req.SourceRoot,
		"{output}", req.Output,
		"{session}", req.Session,
		"{generation}", strconv.FormatUint(req.Generation, 10),
	)
	args := make([]string, len(command))
	for i, arg := range command {
		args[i] = r.Replace(arg)
	}

	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return "", &BuildError{Module: req.Module, Err: err}
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = req.SourceRoot
	cmd.Env = append(cmd.Environ(), b.Env...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return "", &BuildError{Module: req.Module, Output: strings.TrimSpace(out.String()), Err: fmt.Errorf("%s: %w", args[0], err)}
	}
	return req.Output, nil
}
