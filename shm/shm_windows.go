//go:build windows

package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsRegion struct {
	name   string
	handle windows.Handle
	addr   uintptr
	size   int
}

// Create allocates a new named shared-memory segment backed by the
// system paging file, the mechanism §9 describes for the tree's
// cross-process storage.
func Create(name string, size int) (Region, error) {
	h, err := windows.CreateFileMapping(
		windows.InvalidHandle,
		nil,
		windows.PAGE_READWRITE,
		0,
		uint32(size),
		windows.StringToUTF16Ptr(name),
	)
	if err != nil {
		return nil, fmt.Errorf("shm: CreateFileMapping %q: %w", name, err)
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_ALL_ACCESS, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("shm: MapViewOfFile %q: %w", name, err)
	}

	return &windowsRegion{name: name, handle: h, addr: addr, size: size}, nil
}

// Open attaches to an existing named segment created by Create,
// called by an injected child to reach its parent's tree (§4.6, §9).
func Open(name string) (Region, error) {
	h, err := windows.OpenFileMapping(windows.FILE_MAP_ALL_ACCESS, false, windows.StringToUTF16Ptr(name))
	if err != nil {
		return nil, fmt.Errorf("shm: OpenFileMapping %q: %w", name, err)
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_ALL_ACCESS, 0, 0, 0)
	if err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("shm: MapViewOfFile %q: %w", name, err)
	}

	var info windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &info, unsafe.Sizeof(info)); err != nil {
		windows.UnmapViewOfFile(addr)
		windows.CloseHandle(h)
		return nil, fmt.Errorf("shm: VirtualQuery %q: %w", name, err)
	}

	return &windowsRegion{name: name, handle: h, addr: addr, size: int(info.RegionSize)}, nil
}

func (r *windowsRegion) Name() string { return r.name }

func (r *windowsRegion) Size() int { return r.size }

func (r *windowsRegion) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(r.addr)), r.size)
}

func (r *windowsRegion) Close() error {
	if err := windows.UnmapViewOfFile(r.addr); err != nil {
		return err
	}

	return windows.CloseHandle(r.handle)
}
