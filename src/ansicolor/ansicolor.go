package ansicolor

import (
	"os"
	"runtime"
)

// Escape codes used by the pretty log writer. They are vars so Disable can
// blank them out.
var (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Faint = "\033[2m"

	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"

	BgRed    = "\033[41m"
	BgGreen  = "\033[42m"
	BgYellow = "\033[43m"
	BgBlue   = "\033[44m"
)

func init() {
	// https://no-color.org/
	if runtime.GOOS == "windows" || os.Getenv("NO_COLOR") != "" {
		Disable()
	}
}

// Disable turns every escape code into the empty string.
func Disable() {
	for _, c := range []*string{
		&Reset, &Bold, &Faint,
		&Red, &Green, &Yellow, &Blue, &Cyan, &Gray,
		&BgRed, &BgGreen, &BgYellow, &BgBlue,
	} {
		*c = ""
	}
}
