package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/rogaldh/token-upgrade/pkg/types"
)

// Snapshot file format (zstd-compressed stream):
// - magic:   8 bytes ("TUACCTS1")
// - count:   8 bytes (little-endian uint64)
// - entries: count times
//   - pubkey:      32 bytes
//   - account_len: 4 bytes (little-endian uint32)
//   - account:     account_len bytes (SerializeAccount format)

var snapshotMagic = [8]byte{'T', 'U', 'A', 'C', 'C', 'T', 'S', '1'}

// maxSnapshotEntrySize bounds a single serialized account entry. Account
// data is capped at 10 MiB on chain; anything larger in the length field is
// a corrupt or hostile snapshot, not a big account.
const maxSnapshotEntrySize = 10*1024*1024 + serializationMinSize

var (
	// ErrInvalidSnapshot is returned when a snapshot file is malformed.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// ExportSnapshot writes every account in the database to a zstd-compressed
// snapshot file at path.
func ExportSnapshot(db AccountsDB, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	if _, err := encoder.Write(snapshotMagic[:]); err != nil {
		encoder.Close()
		return fmt.Errorf("failed to write snapshot magic: %w", err)
	}

	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], db.GetAccountsCount())
	if _, err := encoder.Write(countBuf[:]); err != nil {
		encoder.Close()
		return fmt.Errorf("failed to write snapshot count: %w", err)
	}

	var iterErr error
	err = db.Iterate(func(pubkey types.Pubkey, account *types.Account) bool {
		data, serErr := SerializeAccount(account)
		if serErr != nil {
			iterErr = serErr
			return false
		}

		if _, wErr := encoder.Write(pubkey[:]); wErr != nil {
			iterErr = wErr
			return false
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
		if _, wErr := encoder.Write(lenBuf[:]); wErr != nil {
			iterErr = wErr
			return false
		}
		if _, wErr := encoder.Write(data); wErr != nil {
			iterErr = wErr
			return false
		}
		return true
	})
	if err == nil {
		err = iterErr
	}
	if err != nil {
		encoder.Close()
		return fmt.Errorf("failed to export accounts: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finish snapshot: %w", err)
	}
	return nil
}

// ImportSnapshot loads every account from a snapshot file into the database.
// Existing accounts with the same pubkeys are overwritten.
func ImportSnapshot(db AccountsDB, path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	var magic [8]byte
	if _, err := io.ReadFull(decoder, magic[:]); err != nil {
		return 0, fmt.Errorf("%w: missing magic: %v", ErrInvalidSnapshot, err)
	}
	if magic != snapshotMagic {
		return 0, fmt.Errorf("%w: bad magic %q", ErrInvalidSnapshot, magic[:])
	}

	var countBuf [8]byte
	if _, err := io.ReadFull(decoder, countBuf[:]); err != nil {
		return 0, fmt.Errorf("%w: missing count: %v", ErrInvalidSnapshot, err)
	}
	count := binary.LittleEndian.Uint64(countBuf[:])

	for i := uint64(0); i < count; i++ {
		var pubkey types.Pubkey
		if _, err := io.ReadFull(decoder, pubkey[:]); err != nil {
			return i, fmt.Errorf("%w: truncated entry %d: %v", ErrInvalidSnapshot, i, err)
		}

		var lenBuf [4]byte
		if _, err := io.ReadFull(decoder, lenBuf[:]); err != nil {
			return i, fmt.Errorf("%w: truncated entry %d: %v", ErrInvalidSnapshot, i, err)
		}
		entryLen := binary.LittleEndian.Uint32(lenBuf[:])
		if entryLen > maxSnapshotEntrySize {
			return i, fmt.Errorf("%w: entry %d length %d exceeds %d",
				ErrInvalidSnapshot, i, entryLen, maxSnapshotEntrySize)
		}

		data := make([]byte, entryLen)
		if _, err := io.ReadFull(decoder, data); err != nil {
			return i, fmt.Errorf("%w: truncated entry %d: %v", ErrInvalidSnapshot, i, err)
		}

		account, err := DeserializeAccount(data)
		if err != nil {
			return i, fmt.Errorf("entry %d: %w", i, err)
		}
		if err := db.SetAccount(pubkey, account); err != nil {
			return i, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	return count, nil
}
