package sessions

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SofiaChang/shopping-agent/internal/agent"
	"github.com/SofiaChang/shopping-agent/internal/models"
)

type stubParser struct{}

func (stubParser) Parse(_ context.Context, _ string, existing models.Constraints) (models.Constraints, error) {
	out := existing
	out.Category = models.String("headphones")
	return out, nil
}

type stubFetcher struct {
	closed bool
}

func (s *stubFetcher) Fetch(_ context.Context, _ string, _ models.Constraints, _ int) ([]models.Product, error) {
	return []models.Product{}, nil
}

func (s *stubFetcher) Close() error {
	s.closed = true
	return nil
}

func newTestManager(fetcher *stubFetcher) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(func() (*agent.Agent, error) {
		return agent.New(stubParser{}, fetcher, logger, 10), nil
	}, logger)
}

func TestManagerLifecycle(t *testing.T) {
	fetcher := &stubFetcher{}
	m := newTestManager(fetcher)

	id, err := m.Create()
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, constraints, err := m.Handle(context.Background(), id, "headphones")
	require.NoError(t, err)
	require.NotNil(t, constraints.Category)
	assert.Equal(t, "headphones", *constraints.Category)

	require.NoError(t, m.Close(id))
	assert.True(t, fetcher.closed)

	_, _, err = m.Handle(context.Background(), id, "headphones")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerUnknownSession(t *testing.T) {
	m := newTestManager(&stubFetcher{})

	_, _, err := m.Handle(context.Background(), "missing", "headphones")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Close("missing"), ErrNotFound)
}

func TestManagerSessionsAreIsolated(t *testing.T) {
	m := newTestManager(&stubFetcher{})

	first, err := m.Create()
	require.NoError(t, err)
	second, err := m.Create()
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, constraints, err := m.Handle(context.Background(), first, "headphones")
	require.NoError(t, err)
	require.NotNil(t, constraints.Category)

	// The second session's store is untouched by the first's turn.
	_, fresh, err := m.Handle(context.Background(), second, "headphones")
	require.NoError(t, err)
	require.NotNil(t, fresh.Category)

	m.CloseAll()
	assert.ErrorIs(t, m.Close(first), ErrNotFound)
}
