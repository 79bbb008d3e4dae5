package main

import (
	"fmt"
	"os"

	"github.com/engramhq/engram/internal/config"
	"github.com/engramhq/engram/internal/daemon"
)

func cmdStart(args []string) {
	foreground := false
	for _, a := range args {
		if a == "--foreground" || a == "-f" {
			foreground = true
		}
	}

	cfg, err := config.Load("")
	if err != nil {
		fail("loading config: %v", err)
	}

	if err := daemon.Run(cfg, foreground); err != nil {
		fail("%v", err)
	}
}

func cmdStop() {
	if err := daemon.Stop(); err != nil {
		fail("stopping daemon: %v", err)
	}
	fmt.Println(colorGood("engram stopped"))
}

func cmdStatus() {
	if err := daemon.Status(); err != nil {
		fail("%v", err)
	}
}

func cmdSetup(args []string) {
	nonInteractive := false
	for _, a := range args {
		if a == "--non-interactive" {
			nonInteractive = true
		}
	}

	if nonInteractive {
		cmdInitConfig()
		fmt.Println("Setup complete. Run 'engram start' to begin.")
		return
	}

	fmt.Println(colorBold("Engram Setup"))
	fmt.Println(colorBold("============"))
	fmt.Println()
	fmt.Println("Engram continuously captures screen OCR text and meeting")
	fmt.Println("transcripts into a local, privately searchable store. Nothing")
	fmt.Println("leaves this machine.")
	fmt.Println()

	cmdInitConfig()

	fmt.Println()
	fmt.Printf("Data directory: %s\n", config.Get().Server.DataDir)
	fmt.Println(colorGood("Setup complete. Run 'engram start' to begin."))
}

func cmdInitConfig() {
	if err := config.InitConfig(); err != nil {
		fail("generating config: %v", err)
	}
}

func cmdInstallService() {
	if err := daemon.InstallService(); err != nil {
		fail("installing service: %v", err)
	}
	fmt.Println(colorGood("Service installed successfully"))
}

func cmdUninstallService() {
	if err := daemon.UninstallService(); err != nil {
		fail("uninstalling service: %v", err)
	}
	fmt.Println(colorGood("Service removed"))
}

func cmdConfigExport(args []string) {
	path := "engram-export.toml"
	if len(args) > 0 {
		path = args[0]
	}
	// Ensure the global config snapshot is populated before exporting it.
	if _, err := config.Load(""); err != nil {
		fail("loading config: %v", err)
	}
	if err := config.ExportConfig(path); err != nil {
		fail("exporting config: %v", err)
	}
	fmt.Printf("Config exported to %s\n", path)
}

func cmdConfigImport(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: engram config-import <file>")
		os.Exit(1)
	}
	if err := config.ImportConfig(args[0]); err != nil {
		fail("importing config: %v", err)
	}
	fmt.Printf("Config imported from %s\n", args[0])
}

func fail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorBad(fmt.Sprintf(format, args...)))
	os.Exit(1)
}
