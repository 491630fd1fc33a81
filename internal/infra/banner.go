package infra

import (
	"fmt"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner displays the startup banner with the active backend.
func PrintBanner(cfg *Config) {
	backend := strings.ToUpper(cfg.Backend)

	color := ColorCyan
	desc := "LOCAL DEVELOPMENT BACKEND"
	if cfg.Backend == BackendHosted {
		color = ColorYellow
		desc = "HOSTED PRODUCTION BACKEND"
	}

	fmt.Println()
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#             🛒 Storefront Sync Client                   #%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#   BACKEND: %-36s #%s\n", color, backend, ColorReset)
	fmt.Printf("%s#   TARGET:  %-36s #%s\n", color, desc, ColorReset)
	fmt.Printf("%s#   VERSION: %-36s #%s\n", color, cfg.App.Version, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)

	if cfg.Backend == BackendHosted {
		fmt.Printf("%s#   ⚠️  MUTATIONS WILL HIT THE PRODUCTION API             #%s\n", ColorYellow, ColorReset)
	}

	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Println()
}
