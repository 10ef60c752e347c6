package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

const jsonContentType = "application/json"

// BlobStore keeps each document as <name>.json in an Azure Blob Storage container
type BlobStore struct {
	client    *azblob.Client
	container string
}

// NewBlobStore creates the client and makes sure the container exists
func NewBlobStore(ctx context.Context, cfg BlobConfig) (*BlobStore, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	if _, err := client.CreateContainer(ctx, cfg.Container, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, fmt.Errorf("create container %s: %w", cfg.Container, err)
		}
	}

	slog.Debug("Blob document store ready", "container", cfg.Container)
	return &BlobStore{client: client, container: cfg.Container}, nil
}

func blobKey(name string) string {
	return name + ".json"
}

func (s *BlobStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, s.container, blobKey(name), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}
	return data, nil
}

func (s *BlobStore) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	contentType := jsonContentType
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}
	if _, err := s.client.UploadStream(ctx, s.container, blobKey(name), bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("upload blob %s: %w", name, err)
	}
	return nil
}

func (s *BlobStore) Close() error { return nil }
