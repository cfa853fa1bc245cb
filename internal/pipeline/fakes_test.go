package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/models"
	"github.com/ternarybob/tubecast/internal/services/state"
)

// memTraceStore is an in-memory TraceStorage with the same per-trace locking
// semantics as the Badger implementation
type memTraceStore struct {
	mu     sync.Mutex
	traces map[string]*models.WorkflowTrace
}

func newMemTraceStore() *memTraceStore {
	return &memTraceStore{traces: make(map[string]*models.WorkflowTrace)}
}

func (m *memTraceStore) clone(trace *models.WorkflowTrace) *models.WorkflowTrace {
	copied := *trace
	return &copied
}

func (m *memTraceStore) Create(ctx context.Context, trace *models.WorkflowTrace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.traces[trace.TraceID]; ok {
		return fmt.Errorf("trace %s already exists", trace.TraceID)
	}
	now := time.Now()
	trace.CreatedAt = now
	trace.UpdatedAt = now
	m.traces[trace.TraceID] = m.clone(trace)
	return nil
}

func (m *memTraceStore) Get(ctx context.Context, traceID string) (*models.WorkflowTrace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trace, ok := m.traces[traceID]
	if !ok {
		return nil, interfaces.ErrTraceNotFound
	}
	return m.clone(trace), nil
}

func (m *memTraceStore) Update(ctx context.Context, traceID string, fn interfaces.TraceMutator) (*models.WorkflowTrace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trace, ok := m.traces[traceID]
	if !ok {
		return nil, interfaces.ErrTraceNotFound
	}
	working := m.clone(trace)
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	m.traces[traceID] = working
	return m.clone(working), nil
}

func (m *memTraceStore) CheckAndSetUploadStarted(ctx context.Context, traceID string) (bool, error) {
	acquired := false
	_, err := m.Update(ctx, traceID, func(trace *models.WorkflowTrace) error {
		if trace.UploadStarted {
			return nil
		}
		trace.UploadStarted = true
		acquired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

func (m *memTraceStore) List(ctx context.Context) ([]*models.WorkflowTrace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WorkflowTrace
	for _, trace := range m.traces {
		out = append(out, m.clone(trace))
	}
	return out, nil
}

// recordingEvents captures published events synchronously
type recordingEvents struct {
	mu         sync.Mutex
	published  []interfaces.Event
	subscribed map[interfaces.EventType]int
}

func newRecordingEvents() *recordingEvents {
	return &recordingEvents{subscribed: make(map[interfaces.EventType]int)}
}

func (r *recordingEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribed[eventType]++
	return nil
}

func (r *recordingEvents) Publish(ctx context.Context, event interfaces.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, event)
	return nil
}

func (r *recordingEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return r.Publish(ctx, event)
}

func (r *recordingEvents) Close() error { return nil }

func (r *recordingEvents) eventsOf(eventType interfaces.EventType) []interfaces.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []interfaces.Event
	for _, event := range r.published {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// memObjectStore is an in-memory ObjectStore
type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (m *memObjectStore) SaveStream(ctx context.Context, key string, r io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return key, nil
}

func (m *memObjectStore) SaveBuffer(ctx context.Context, key string, buf []byte) (string, error) {
	return m.SaveStream(ctx, key, bytes.NewReader(buf))
}

func (m *memObjectStore) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrObjectNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjectStore) PublicURL(key string) string {
	return "http://store.test/" + key
}

// fakeLLM returns canned model outputs
type fakeLLM struct {
	prompts      *interfaces.VideoPrompts
	promptsErr   error
	title        string
	titleErr     error
	titleCalls   int
	thumbnail    []byte
	thumbnailErr error
}

func (f *fakeLLM) GeneratePrompts(ctx context.Context, fileName string) (*interfaces.VideoPrompts, error) {
	if f.promptsErr != nil {
		return nil, f.promptsErr
	}
	return f.prompts, nil
}

func (f *fakeLLM) GenerateTitle(ctx context.Context, titlePrompt string) (string, error) {
	f.titleCalls++
	if f.titleErr != nil {
		return "", f.titleErr
	}
	return f.title, nil
}

func (f *fakeLLM) GenerateThumbnail(ctx context.Context, imagePrompt string) ([]byte, error) {
	if f.thumbnailErr != nil {
		return nil, f.thumbnailErr
	}
	return f.thumbnail, nil
}

func (f *fakeLLM) Close() error { return nil }

// fakePublisher records publish requests
type fakePublisher struct {
	mu       sync.Mutex
	calls    int
	requests []*interfaces.PublishRequest
	result   *models.UploadResult
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, req *interfaces.PublishRequest) (*models.UploadResult, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeMailer records sent emails
type fakeMailer struct {
	mu         sync.Mutex
	configured bool
	sendErr    error
	sent       []sentMail
}

type sentMail struct {
	to, subject, htmlBody, textBody string
}

func (f *fakeMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	return f.SendHTMLEmail(ctx, to, subject, "", body)
}

func (f *fakeMailer) SendHTMLEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to: to, subject: subject, htmlBody: htmlBody, textBody: textBody})
	return nil
}

func (f *fakeMailer) IsConfigured(ctx context.Context) bool { return f.configured }

// testPipeline bundles the pipeline under test with its fakes
type testPipeline struct {
	pipeline  *Pipeline
	state     *state.Service
	events    *recordingEvents
	objects   *memObjectStore
	llm       *fakeLLM
	publisher *fakePublisher
	mailer    *fakeMailer
	config    *common.Config
}

func newTestPipeline() *testPipeline {
	logger := arbor.NewLogger()
	config := common.NewDefaultConfig()
	config.Email.NotifyTo = "creator@example.com"

	tp := &testPipeline{
		state:   state.NewService(newMemTraceStore(), logger),
		events:  newRecordingEvents(),
		objects: newMemObjectStore(),
		llm: &fakeLLM{
			prompts: &interfaces.VideoPrompts{
				Title:           "Generated Title",
				Description:     "Generated description",
				Tags:            []string{"generated"},
				ThumbnailPrompt: "a bold thumbnail",
				TitlePrompt:     "a catchy title",
			},
			title:     "AI Title",
			thumbnail: []byte{0x89, 0x50, 0x4e, 0x47},
		},
		publisher: &fakePublisher{
			result: &models.UploadResult{VideoID: "yt123", VideoURL: "https://youtu.be/yt123"},
		},
		mailer: &fakeMailer{configured: true},
		config: config,
	}
	tp.pipeline = New(tp.state, tp.objects, tp.llm, tp.publisher, tp.mailer, tp.events, config, logger)
	return tp
}
