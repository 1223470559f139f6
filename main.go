package main

import (
	"os"

	"github.com/zhengshuai-xiao/cdcidx/cmd"
	"github.com/zhengshuai-xiao/cdcidx/internal"
)

var logger = internal.GetLogger("cdcidx_main")

func main() {
	err := cmd.Main(os.Args)
	if err != nil {
		logger.Fatal(err)
	}
}
