package state

import (
	"encoding/binary"
	"fmt"

	"ledgernode/core/types"
)

var filePrefix = []byte("file:")

func fileKey(id types.FileID) []byte {
	buf := make([]byte, len(filePrefix)+8)
	copy(buf, filePrefix)
	binary.BigEndian.PutUint64(buf[len(filePrefix):], uint64(id))
	return buf
}

// GetFile returns the stored file or nil when absent.
func (m *Manager) GetFile(id types.FileID) (*types.File, error) {
	file := new(types.File)
	ok, err := m.KVGet(fileKey(id), file)
	if err != nil {
		return nil, fmt.Errorf("state: load file %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	return file, nil
}

// PutFile stores the file.
func (m *Manager) PutFile(file *types.File) error {
	if file == nil {
		return fmt.Errorf("state: file must not be nil")
	}
	return m.KVPut(fileKey(file.ID), file)
}
