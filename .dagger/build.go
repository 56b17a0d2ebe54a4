package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/shamba/internal/dagger"
)

// Build and return directory of linux binaries for the container's architecture.
// The SQLite driver needs cgo, so builds run in the cgo-enabled container.
func (s *Shamba) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	const out = "bin/"

	build := s.goContainer().
		WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", out, "./cli/shamba"}).
		WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", out, "./cli/shambaproxy"})

	return build.Directory(out)
}

// BuildRelease compiles versioned release binaries with embedded version info
func (s *Shamba) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/shamba-ai/shamba/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/shamba-ai/shamba/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/shamba-ai/shamba/pkg/utils.Buildtime=%s'", buildtime),
	}

	return s.Build(ctx, strings.Join(ldflags, " "))
}
