// FilePath: cmd/main.go
package main

import (
	"os"

	tm "github.com/buger/goterm"
	"github.com/sauqing9/api-sitras/internal/config"
	"github.com/sauqing9/api-sitras/internal/server"
	nuts "github.com/vaudience/go-nuts"
)

var banner = []string{
	"   _____ ________________  ___   _____",
	"  / ___//  _/_  __/ __ \\/   | / ___/",
	"  \\__ \\ / /  / / / /_/ / /| | \\__ \\ ",
	" ___/ // /  / / / _, _/ ___ |___/ / ",
	"/____/___/ /_/ /_/ |_/_/  |_/____/  ",
}

// @title SITRAS API
// @version 1.0
// @description Soil sensor ingestion, calibration and fertilizer recommendation service.
// @BasePath /api
func main() {
	nuts.InitVersion()
	showBanner(nuts.GetVersion())

	cfg, err := config.Load()
	if err != nil {
		nuts.L.Errorf("[Main] Failed to load configuration: %v", err)
		os.Exit(1)
	}
	nuts.L.Infof("[Main] Starting SITRAS API v%s (store=%s, attachments=%s)",
		nuts.GetVersion(), cfg.Store.Driver, cfg.Attachments.Driver)

	if err := server.New(cfg).Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

// showBanner clears the terminal and prints the logo with the build version
func showBanner(version string) {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Println()
	for _, line := range banner {
		tm.Println(line)
	}
	tm.Println("......................................  " + version)
	tm.Flush()
}
