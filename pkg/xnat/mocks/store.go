package mocks

import (
	"context"
	"sync"

	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/humanconnectome/hcp-pipelines/pkg/xnat"
)

type CallLog[T any] []T

func (cl CallLog[T]) Times() int {
	return len(cl)
}

// Store records calls. A nil Impl function succeeds without doing anything.
type Store struct {
	mu sync.Mutex

	Impl struct {
		Upload         func(ctx context.Context, resource, localPath, reason string) error
		Delete         func(ctx context.Context, resource string) error
		RemoveFile     func(ctx context.Context, resource, remotePath string) error
		Exists         func(ctx context.Context, resource string) (bool, error)
		RefreshCatalog func(ctx context.Context, resource string) error
	}
	Calls struct {
		Upload CallLog[struct {
			Resource  string
			LocalPath string
			Reason    string
			Settings  xnat.UploadSettings

			// Files are the contents of LocalPath at the call, relative path to content.
			Files map[string]string
		}]
		Delete         CallLog[struct{ Resource string }]
		RemoveFile     CallLog[struct{ Resource, RemotePath string }]
		Exists         CallLog[struct{ Resource string }]
		RefreshCatalog CallLog[struct{ Resource string }]
	}
}

var _ xnat.Store = &Store{}

func NewStore() *Store {
	return &Store{}
}

// Connector returns a Connector handing out this Store for any session.
func (m *Store) Connector() xnat.Connector {
	return func(context.Context, session.Subject) (xnat.Store, error) {
		return m, nil
	}
}

func (m *Store) Upload(ctx context.Context, resource, localPath, reason string, opts ...xnat.UploadOption) error {
	m.mu.Lock()
	m.Calls.Upload = append(m.Calls.Upload, struct {
		Resource  string
		LocalPath string
		Reason    string
		Settings  xnat.UploadSettings
		Files     map[string]string
	}{
		Resource: resource, LocalPath: localPath, Reason: reason,
		Settings: xnat.UploadSettingsOf(opts...), Files: snapshot(localPath),
	})
	m.mu.Unlock()
	if m.Impl.Upload != nil {
		return m.Impl.Upload(ctx, resource, localPath, reason)
	}
	return nil
}

func (m *Store) Delete(ctx context.Context, resource string) error {
	m.mu.Lock()
	m.Calls.Delete = append(m.Calls.Delete, struct{ Resource string }{Resource: resource})
	m.mu.Unlock()
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, resource)
	}
	return nil
}

func (m *Store) RemoveFile(ctx context.Context, resource, remotePath string) error {
	m.mu.Lock()
	m.Calls.RemoveFile = append(m.Calls.RemoveFile, struct{ Resource, RemotePath string }{Resource: resource, RemotePath: remotePath})
	m.mu.Unlock()
	if m.Impl.RemoveFile != nil {
		return m.Impl.RemoveFile(ctx, resource, remotePath)
	}
	return nil
}

func (m *Store) Exists(ctx context.Context, resource string) (bool, error) {
	m.mu.Lock()
	m.Calls.Exists = append(m.Calls.Exists, struct{ Resource string }{Resource: resource})
	m.mu.Unlock()
	if m.Impl.Exists != nil {
		return m.Impl.Exists(ctx, resource)
	}
	return true, nil
}

func (m *Store) RefreshCatalog(ctx context.Context, resource string) error {
	m.mu.Lock()
	m.Calls.RefreshCatalog = append(m.Calls.RefreshCatalog, struct{ Resource string }{Resource: resource})
	m.mu.Unlock()
	if m.Impl.RefreshCatalog != nil {
		return m.Impl.RefreshCatalog(ctx, resource)
	}
	return nil
}
