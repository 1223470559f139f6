package internal

import "fmt"

// Set at build time with -ldflags "-X github.com/zhengshuai-xiao/cdcidx/internal.version=..."
var (
	version  = "0.1.0"
	revision = "dev"
)

func Version() string {
	return fmt.Sprintf("%s+%s", version, revision)
}
