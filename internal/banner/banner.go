package banner

import (
	"fmt"
	"io"
)

// Logo is the ASCII art logo for talpa
const Logo = `
   ████████╗ █████╗ ██╗     ██████╗  █████╗
   ╚══██╔══╝██╔══██╗██║     ██╔══██╗██╔══██╗
      ██║   ███████║██║     ██████╔╝███████║
      ██║   ██╔══██║██║     ██╔═══╝ ██╔══██║
      ██║   ██║  ██║███████╗██║     ██║  ██║
      ╚═╝   ╚═╝  ╚═╝╚══════╝╚═╝     ╚═╝  ╚═╝
`

// Tagline is the project tagline
const Tagline = "Digs and plugs Cloudflare Tunnel routes"

// PrintWithVersion prints the banner with version info
func PrintWithVersion(w io.Writer, version string) {
	fmt.Fprint(w, Logo)
	fmt.Fprintf(w, "   %s\n", Tagline)
	fmt.Fprintf(w, "   v%s\n\n", version)
}

// PrintCompact prints a compact single-line banner
func PrintCompact(w io.Writer, version string) {
	fmt.Fprintf(w, "talpa v%s\n", version)
}
