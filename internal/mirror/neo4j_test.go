package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawblock/riskgraph/pkg/models"
)

type call struct {
	cypher string
	params map[string]any
}

type fakeWriter struct {
	calls  []call
	err    error
	closed bool
}

func (f *fakeWriter) ExecuteWrite(_ context.Context, cypher string, params map[string]any) error {
	f.calls = append(f.calls, call{cypher: cypher, params: params})
	return f.err
}

func (f *fakeWriter) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestObserveTransferWritesRelationship(t *testing.T) {
	w := &fakeWriter{}
	m := New(w)

	err := m.ObserveTransfer(context.Background(), models.Transfer{
		From: "A", To: "B", Amount: decimal.RequireFromString("12.5"), Timestamp: 42, Hash: "h1",
	})
	require.NoError(t, err)
	require.Len(t, w.calls, 1)

	c := w.calls[0]
	assert.Equal(t, mergeTransferCypher, c.cypher)
	assert.Equal(t, "A", c.params["from"])
	assert.Equal(t, "B", c.params["to"])
	assert.Equal(t, "12.5", c.params["amount"])
	assert.Equal(t, int64(42), c.params["timestamp"])
	assert.Equal(t, []string{}, c.params["flags"])
}

func TestPublishVerdictUpdatesBothEndpoints(t *testing.T) {
	w := &fakeWriter{}
	m := New(w)

	require.NoError(t, m.PublishVerdict(context.Background(), models.RiskVerdict{FromAddress: "A", ToAddress: "B", RiskScore: 64}))
	require.Len(t, w.calls, 2)
	assert.Equal(t, "A", w.calls[0].params["address"])
	assert.Equal(t, "B", w.calls[1].params["address"])
	assert.Equal(t, int64(64), w.calls[1].params["score"])
}

func TestWriterErrorsAreWrapped(t *testing.T) {
	boom := errors.New("bolt closed")
	m := New(&fakeWriter{err: boom})

	err := m.ObserveTransfer(context.Background(), models.Transfer{From: "A", To: "B", Hash: "h"})
	assert.ErrorIs(t, err, boom)

	err = m.PublishVerdict(context.Background(), models.RiskVerdict{FromAddress: "A", ToAddress: "B"})
	assert.ErrorIs(t, err, boom)
}

func TestConnectRequiresURI(t *testing.T) {
	_, err := Connect(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrMissingURI)
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, New(w).Close(context.Background()))
	assert.True(t, w.closed)
}
