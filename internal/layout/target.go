package layout

import (
	"fmt"
	"runtime"
	"strings"

	"dffi/internal/types"
)

// Arch is a CPU architecture the layout and ABI rules know about.
type Arch uint8

const (
	ArchUnknown Arch = iota
	ArchX86_64
	ArchAArch64
)

func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86_64"
	case ArchAArch64:
		return "aarch64"
	default:
		return "unknown"
	}
}

// OS selects the platform flavour of the C ABI.
type OS uint8

const (
	OSUnknown OS = iota
	OSLinux
	OSDarwin
	OSWindows
)

func (o OS) String() string {
	switch o {
	case OSLinux:
		return "linux"
	case OSDarwin:
		return "darwin"
	case OSWindows:
		return "windows"
	default:
		return "unknown"
	}
}

// Target describes the ABI target triple and its pointer properties.
type Target struct {
	Triple    string // e.g. "x86_64-linux-gnu"
	Arch      Arch
	OS        OS
	PtrSize   uint64 // bytes
	PtrAlign  uint32 // bytes
	DefaultCC types.CallingConv
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:    "x86_64-linux-gnu",
		Arch:      ArchX86_64,
		OS:        OSLinux,
		PtrSize:   8,
		PtrAlign:  8,
		DefaultCC: types.CCX86_64SysV,
	}
}

func AArch64LinuxGNU() Target {
	return Target{
		Triple:    "aarch64-linux-gnu",
		Arch:      ArchAArch64,
		OS:        OSLinux,
		PtrSize:   8,
		PtrAlign:  8,
		DefaultCC: types.CCAArch64,
	}
}

func X86_64WindowsMSVC() Target {
	return Target{
		Triple:    "x86_64-windows-msvc",
		Arch:      ArchX86_64,
		OS:        OSWindows,
		PtrSize:   8,
		PtrAlign:  8,
		DefaultCC: types.CCWin64,
	}
}

// Host returns the target the process is running on. Unknown platforms fall
// back to x86_64-linux-gnu so classification stays usable.
func Host() Target {
	t, err := ParseTriple(runtime.GOARCH + "-" + runtime.GOOS)
	if err != nil {
		return X86_64LinuxGNU()
	}
	return t
}

// ParseTriple accepts "arch-os[-env]" spellings as well as Go's
// GOARCH-GOOS pairs ("amd64-linux").
func ParseTriple(s string) (Target, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "-")
	if len(parts) < 2 {
		return Target{}, fmt.Errorf("target %q: expected arch-os", s)
	}
	var t Target
	switch parts[0] {
	case "x86_64", "amd64", "x64":
		t = X86_64LinuxGNU()
	case "aarch64", "arm64":
		t = AArch64LinuxGNU()
	default:
		return Target{}, fmt.Errorf("target %q: unsupported architecture %q", s, parts[0])
	}
	osKind := OSUnknown
	for _, p := range parts[1:] {
		switch p {
		case "linux":
			osKind = OSLinux
		case "darwin", "apple", "macos":
			osKind = OSDarwin
		case "windows", "win32":
			osKind = OSWindows
		}
		if osKind != OSUnknown {
			break
		}
	}
	switch osKind {
	case OSUnknown:
		return Target{}, fmt.Errorf("target %q: unsupported operating system", s)
	case OSWindows:
		if t.Arch != ArchX86_64 {
			return Target{}, fmt.Errorf("target %q: windows is only supported on x86_64", s)
		}
		t = X86_64WindowsMSVC()
	case OSDarwin:
		t.OS = OSDarwin
		t.Triple = t.Arch.String() + "-apple-darwin"
	}
	return t, nil
}

// DataModel returns the pointer properties the type model needs.
func (t Target) DataModel() types.DataModel {
	return types.DataModel{PtrSize: t.PtrSize, PtrAlign: t.PtrAlign}
}

// ResolveCC maps CCDefault to the target's native convention.
func (t Target) ResolveCC(cc types.CallingConv) types.CallingConv {
	if cc == types.CCDefault {
		return t.DefaultCC
	}
	return cc
}

func (t Target) String() string { return t.Triple }
