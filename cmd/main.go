package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/cdcidx/internal"
)

var logger = internal.GetLogger("cdcidx_cmd")

const logFileName = "cdcidx.log"

func newApp() *cli.App {
	cli.VersionFlag = &cli.BoolFlag{
		Name: "version", Aliases: []string{"V"},
		Usage: "print version only",
	}
	return &cli.App{
		Name:                 "cdcidx",
		Usage:                "Build content-defined chunk indexes of files.",
		Version:              internal.Version(),
		Copyright:            "Apache License 2.0",
		HideHelpCommand:      true,
		EnableBashCompletion: true,
		Flags:                globalFlags(),
		Before:               setup,
		Commands: []*cli.Command{
			cmdChunk(),
			cmdWalk(),
			cmdInspect(),
			cmdVerify(),
		},
	}
}

func Main(args []string) error {
	app := newApp()
	err := app.Run(reorderOptions(app, args))
	if errno, ok := err.(syscall.Errno); ok && errno == 0 {
		err = nil
	}

	return err
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "loglevel",
			Usage:   "log level: trace/debug/info/warn/error",
			Value:   "info",
			EnvVars: []string{"CDCIDX_LOGLEVEL"},
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "shorthand for --loglevel debug",
		},
		&cli.StringFlag{
			Name:  "logdir",
			Usage: "write logs to a daily rotated " + logFileName + " in this directory",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "disable colors in log output",
		},
	}
}

func setup(c *cli.Context) error {
	level := internal.ParseLogLevel(c.String("loglevel"))
	if c.Bool("debug") && !c.IsSet("loglevel") {
		level = internal.ParseLogLevel("debug")
	}
	internal.SetLogLevel(level)
	if c.Bool("no-color") {
		internal.DisableLogColor()
	}
	if logDir := c.String("logdir"); logDir != "" {
		if err := internal.SetOutFile(filepath.Join(logDir, logFileName)); err != nil {
			return err
		}
	}
	internal.SetLogID(fmt.Sprintf("[%s] ", uuid.NewString()[:8]))
	return nil
}

func reorderOptions(app *cli.App, args []string) []string {
	var newArgs = []string{args[0]}
	var others []string
	globalFlags := append(app.Flags, cli.VersionFlag)
	for i := 1; i < len(args); i++ {
		option := args[i]
		if ok, hasValue := isFlag(globalFlags, option); ok {
			newArgs = append(newArgs, option)
			if hasValue {
				i++
				if i >= len(args) {
					logger.Fatalf("option %s requires value", option)
				}
				newArgs = append(newArgs, args[i])
			}
		} else {
			others = append(others, option)
		}
	}
	// no command
	if len(others) == 0 {
		return newArgs
	}
	cmdName := others[0]
	var cmd *cli.Command
	for _, c := range app.Commands {
		if c.Name == cmdName || internal.StringContains(c.Aliases, cmdName) {
			cmd = c
			break
		}
	}
	if cmd == nil {
		// can't recognize the command, skip it
		return append(newArgs, others...)
	}

	newArgs = append(newArgs, cmdName)
	args, others = others[1:], nil
	// -h is valid for all the commands
	cmdFlags := append(cmd.Flags, cli.HelpFlag)
	for i := 0; i < len(args); i++ {
		option := args[i]
		if ok, hasValue := isFlag(cmdFlags, option); ok {
			newArgs = append(newArgs, option)
			if hasValue && len(args[i+1:]) > 0 {
				i++
				newArgs = append(newArgs, args[i])
			}
		} else {
			if strings.HasPrefix(option, "-") && option != "-" && !internal.StringContains(args, "--generate-bash-completion") {
				logger.Fatalf("unknown option: %s", option)
			}
			others = append(others, option)
		}
	}
	return append(newArgs, others...)
}

func isFlag(flags []cli.Flag, option string) (bool, bool) {
	if !strings.HasPrefix(option, "-") {
		return false, false
	}
	// --V or -v work the same
	option = strings.TrimLeft(option, "-")
	for _, flag := range flags {
		_, isBool := flag.(*cli.BoolFlag)
		for _, name := range flag.Names() {
			if option == name || strings.HasPrefix(option, name+"=") {
				return true, !isBool && !strings.Contains(option, "=")
			}
		}
	}
	return false, false
}
