package bundle

import "runtime"

// Platform returns the name used in packaged keyword file names
// (for example jarvis_linux.ppn).
func Platform() string {
	return platformFor(runtime.GOOS, runtime.GOARCH)
}

func platformFor(goos, goarch string) string {
	switch goos {
	case "darwin":
		return "mac"
	case "windows":
		return "windows"
	case "linux":
		if goarch == "arm" || goarch == "arm64" {
			return "raspberry-pi"
		}
		return "linux"
	default:
		return goos
	}
}

// archDir is the per-architecture directory inside a lib/<platform>/ tree
func archDir(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i386"
	default:
		return goarch
	}
}
