package main

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ahmad-alkadri/scrubber/internal/scrub"
	"github.com/ahmad-alkadri/scrubber/internal/services"
	"github.com/rs/zerolog"
)

// MockStorageService implements a mock version of StorageService for testing
type MockStorageService struct {
	objects      map[string][]byte
	contentTypes map[string]string
	saveError    error
	getError     error
	listError    error
	mu           sync.Mutex
}

func NewMockStorageService() *MockStorageService {
	return &MockStorageService{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (m *MockStorageService) SaveObject(_ context.Context, objectName string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.objects[objectName] = data
	m.contentTypes[objectName] = contentType
	return nil
}

func (m *MockStorageService) GetObject(_ context.Context, objectName string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	if data, exists := m.objects[objectName]; exists {
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", services.ErrObjectNotFound, objectName)
}

func (m *MockStorageService) ListObjects(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listError != nil {
		return nil, m.listError
	}
	var objects []string
	for key := range m.objects {
		objects = append(objects, key)
	}
	sort.Strings(objects)
	return objects, nil
}

func (m *MockStorageService) DeleteObject(_ context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	delete(m.contentTypes, objectName)
	return nil
}

func (m *MockStorageService) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockStorageService) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getError = err
}

func (m *MockStorageService) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listError = err
}

// Only returns the single stored object; tests that upload one file use it.
func (m *MockStorageService) Only() (string, []byte, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, data := range m.objects {
		return name, data, m.contentTypes[name]
	}
	return "", nil, ""
}

// fixedIDGenerator hands out a predictable id
type fixedIDGenerator struct{ id string }

func (g fixedIDGenerator) Generate() string { return g.id }

const testID = "0123456789abcdef0123456789abcdef"

// createTestCleaningService wires the real scrub core to mock storage
func createTestCleaningService(storage StorageService) *DefaultCleaningService {
	return NewDefaultCleaningService(
		storage,
		scrub.NewWalker(scrub.WithWorkers(2)),
		fixedIDGenerator{id: testID},
		NewDefaultContentTypeDetector(),
		zerolog.Nop(),
	)
}

// createTestHandler creates a handler with all dependencies for testing
func createTestHandler(storage StorageService, maxUploadBytes int64) *HTTPHandler {
	return NewHTTPHandler(
		createTestCleaningService(storage),
		services.NewMultipartProcessor("file"),
		NewDefaultFilenameExtractor(),
		NewDefaultResponseFormatter(),
		maxUploadBytes,
		zerolog.Nop(),
	)
}
