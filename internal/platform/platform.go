package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform represents the detected host platform.
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL1    Platform = "wsl1"
	PlatformWSL2    Platform = "wsl2"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

var (
	detectedPlatform Platform
	detectionDone    bool
)

// Detect returns the current platform, caching the result.
func Detect() Platform {
	if detectionDone {
		return detectedPlatform
	}
	detectedPlatform = detectPlatform()
	detectionDone = true
	return detectedPlatform
}

func detectPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
		return detectLinuxOrWSL()
	default:
		return PlatformUnknown
	}
}

// detectLinuxOrWSL distinguishes native Linux from WSL 1/2.
func detectLinuxOrWSL() Platform {
	inWSL := os.Getenv("WSL_DISTRO_NAME") != ""
	procVersion, err := os.ReadFile("/proc/version")
	if err != nil {
		if inWSL {
			return PlatformWSL1
		}
		return PlatformLinux
	}
	versionStr := string(procVersion)
	if !inWSL && !strings.Contains(strings.ToLower(versionStr), "microsoft") {
		return PlatformLinux
	}

	// WSL2 kernels carry "microsoft-standard"; WSL1 reports "Microsoft"
	// without it. /run/WSL and /dev/vsock exist only under WSL2.
	if strings.Contains(versionStr, "microsoft-standard") {
		return PlatformWSL2
	}
	if _, err := os.Stat("/run/WSL"); err == nil {
		return PlatformWSL2
	}
	if _, err := os.Stat("/dev/vsock"); err == nil {
		return PlatformWSL2
	}
	return PlatformWSL1
}

// IsWSL returns true in any WSL environment.
func IsWSL() bool {
	p := Detect()
	return p == PlatformWSL1 || p == PlatformWSL2
}

// String returns a human-readable platform name.
func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL1:
		return "WSL1"
	case PlatformWSL2:
		return "WSL2"
	case PlatformWindows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// CheckFsnotifySupport reports whether the filesystem holding path delivers
// inotify events reliably. Returns a warning string for problematic mounts
// (9p, nfs, cifs, sshfs) or "" when events should work. The session map
// watcher logs the warning and relies on plain polling when events are
// unavailable.
func CheckFsnotifySupport(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}

	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}

	// Longest-prefix match of mountpoints against the path.
	// /proc/mounts format: device mountpoint fstype options ...
	var matchedMount, matchedFsType string
	for _, line := range strings.Split(string(mounts), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mountPoint, fsType := fields[1], fields[2]
		if strings.HasPrefix(absPath, mountPoint) && len(mountPoint) > len(matchedMount) {
			matchedMount = mountPoint
			matchedFsType = fsType
		}
	}

	switch {
	case matchedFsType == "9p":
		return "session map on a 9p mount (WSL Windows filesystem): change events unavailable, relying on poll interval"
	case matchedFsType == "nfs" || matchedFsType == "nfs4":
		return "session map on an NFS mount: change events may be unreliable, relying on poll interval"
	case matchedFsType == "cifs" || matchedFsType == "smbfs":
		return "session map on a CIFS/SMB mount: change events may be unreliable, relying on poll interval"
	case strings.HasPrefix(matchedFsType, "fuse.sshfs"):
		return "session map on an SSHFS mount: change events unavailable, relying on poll interval"
	}
	return ""
}
