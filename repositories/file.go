//go:generate go run go.uber.org/mock/mockgen -source=file.go -destination=../mocks/mock_file_repository.go -package=mocks
package repositories

import (
	"encoding/json"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
)

type IFileRepository interface {
	SaveFile(file domain.StoredFile) error
	GetOwnedFile(fileID, userID string) (domain.StoredFile, error)
}

type FileRepository struct {
	db *badger.DB
}

func NewFileRepository(db *badger.DB) IFileRepository {
	return &FileRepository{db: db}
}

func (f FileRepository) SaveFile(file domain.StoredFile) error {
	data, err := json.Marshal(file)
	if err != nil {
		return err
	}
	return f.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("file:"+file.ID), data)
	})
}

// GetOwnedFile looks up a file record and enforces ownership: only the
// uploader may attach it to a message.
func (f FileRepository) GetOwnedFile(fileID, userID string) (domain.StoredFile, error) {
	var file domain.StoredFile
	err := f.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("file:" + fileID))
		if err != nil {
			return errors.ErrInvalidFileData
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &file)
		})
	})
	if err != nil {
		return domain.StoredFile{}, err
	}
	if file.UserID != userID {
		return domain.StoredFile{}, errors.ErrFileAccessDenied
	}
	return file, nil
}
