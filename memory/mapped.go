package memory

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Mapped is a Store backed by a shared memory mapping of a file, so that
// the flash contents survive the process.
type Mapped struct {
	region

	path string
}

// OpenFile maps path as a store of the given size. A missing or empty file
// is created and initialised to the erased value, an existing file must
// already have the requested size.
func OpenFile(path string, size int64) (*Mapped, error) {
	if !IsPowerOfTwo(size) {
		return nil, ErrorInvalidSize
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	/* The mapping stays valid after the descriptor is closed */
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, err
	}

	fresh := st.Size == 0
	if fresh {
		if err := unix.Ftruncate(fd, size); err != nil {
			return nil, err
		}
	} else if st.Size != size {
		return nil, fmt.Errorf("%s is %d bytes, want %d: %w", path, st.Size, size, ErrorSizeMismatch)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	m := &Mapped{
		region: region{
			data:   data,
			erased: DefaultErasedValue,
		},
		path: path,
	}
	if fresh {
		m.EraseAll()
	}

	return m, nil
}

func (m *Mapped) Path() string {
	return m.path
}

// Sync flushes dirty pages to the file.
func (m *Mapped) Sync() error {
	if m.data == nil {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

func (m *Mapped) Close() error {
	if m.data == nil {
		return nil
	}

	data := m.data
	m.data = nil

	if err := unix.Msync(data, unix.MS_SYNC); err != nil {
		unix.Munmap(data)
		return err
	}
	return unix.Munmap(data)
}
