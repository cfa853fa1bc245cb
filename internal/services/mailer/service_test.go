package mailer

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubecast/internal/interfaces"
)

type memoryKV struct {
	mu    sync.Mutex
	pairs map[string]string
}

func newMemoryKV(pairs map[string]string) *memoryKV {
	if pairs == nil {
		pairs = make(map[string]string)
	}
	return &memoryKV{pairs: pairs}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.pairs[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return value, nil
}

func (m *memoryKV) Set(ctx context.Context, key, value, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[key] = value
	return nil
}

func (m *memoryKV) Delete(ctx context.Context, key string) error { return nil }

func (m *memoryKV) List(ctx context.Context) ([]interfaces.KeyValuePair, error) { return nil, nil }

func (m *memoryKV) GetAll(ctx context.Context) (map[string]string, error) { return m.pairs, nil }

func TestGetConfig_Defaults(t *testing.T) {
	svc := NewService(newMemoryKV(nil), arbor.NewLogger())

	config, err := svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 587, config.Port)
	assert.True(t, config.UseTLS)
	assert.Equal(t, "Tubecast", config.FromName)
	assert.Empty(t, config.Host)
}

func TestGetConfig_FromStorage(t *testing.T) {
	kv := newMemoryKV(map[string]string{
		"smtp_host":      "smtp.gmail.com",
		"smtp_port":      "465",
		"smtp_username":  "bot@example.com",
		"smtp_password":  "secret",
		"smtp_from":      "bot@example.com",
		"smtp_from_name": "Pipeline Bot",
		"smtp_use_tls":   "true",
	})
	svc := NewService(kv, arbor.NewLogger())

	config, err := svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "smtp.gmail.com", config.Host)
	assert.Equal(t, 465, config.Port)
	assert.Equal(t, "Pipeline Bot", config.FromName)
	assert.True(t, config.UseTLS)
}

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name  string
		pairs map[string]string
		want  bool
	}{
		{
			name:  "empty storage",
			pairs: nil,
			want:  false,
		},
		{
			name: "missing password",
			pairs: map[string]string{
				"smtp_host":     "smtp.example.com",
				"smtp_username": "u",
				"smtp_from":     "u@example.com",
			},
			want: false,
		},
		{
			name: "complete",
			pairs: map[string]string{
				"smtp_host":     "smtp.example.com",
				"smtp_username": "u",
				"smtp_password": "p",
				"smtp_from":     "u@example.com",
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newMemoryKV(tt.pairs), arbor.NewLogger())
			assert.Equal(t, tt.want, svc.IsConfigured(context.Background()))
		})
	}
}

func TestSendHTMLEmail_RequiresConfiguration(t *testing.T) {
	svc := NewService(newMemoryKV(nil), arbor.NewLogger())

	err := svc.SendHTMLEmail(context.Background(), "to@example.com", "subject", "<p>hi</p>", "hi")
	assert.Error(t, err)
}

func TestGenerateBoundary(t *testing.T) {
	a := generateBoundary()
	b := generateBoundary()
	assert.True(t, strings.HasPrefix(a, "tubecast_"))
	assert.NotEqual(t, a, b)
}

func TestEncodeBase64WithLineBreaks(t *testing.T) {
	content := strings.Repeat("tubecast email body ", 20)
	encoded := encodeBase64WithLineBreaks(content)

	for _, line := range strings.Split(encoded, "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(encoded, "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, content, string(decoded))
}
