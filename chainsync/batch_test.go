package chainsync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclight-network/arclight/chainsync"
)

func TestSubmitHeadersRange(t *testing.T) {
	f := newFixture(t)

	// a range response: children follow parents, so one pass lands them all
	var raws [][]byte
	parent := f.genesis
	for i := 0; i < 16; i++ {
		hdr := f.childOf(parent, i%len(f.slotPrivs))
		raw, err := hdr.Encode()
		require.NoError(t, err)
		raws = append(raws, raw)
		parent = hdr
	}

	outcomes := f.engine.SubmitHeaders(raws, testPeer)
	require.Len(t, outcomes, len(raws))
	for i, out := range outcomes {
		assert.Equal(t, chainsync.StatusVerified, out.Status, "header %d: %v", i, out.Err)
	}

	_, best := f.engine.BestChainHead()
	assert.EqualValues(t, 16, best.Number)
}

func TestSubmitHeadersMixedBatch(t *testing.T) {
	f := newFixture(t)

	h1 := f.childOf(f.genesis, 0)
	h2 := f.childOf(h1, 1)
	raw1, err := h1.Encode()
	require.NoError(t, err)
	raw2, err := h2.Encode()
	require.NoError(t, err)

	outcomes := f.engine.SubmitHeaders([][]byte{raw1, {0xde, 0xad}, raw2}, testPeer)
	require.Len(t, outcomes, 3)

	assert.Equal(t, chainsync.StatusVerified, outcomes[0].Status)
	assert.Equal(t, chainsync.StatusBadEncoding, outcomes[1].Status)
	assert.Equal(t, chainsync.StatusVerified, outcomes[2].Status, "a bad blob does not poison the rest")
}

func TestSubmitHeadersOutOfOrder(t *testing.T) {
	f := newFixture(t)

	h1 := f.childOf(f.genesis, 0)
	h2 := f.childOf(h1, 1)
	raw1, err := h1.Encode()
	require.NoError(t, err)
	raw2, err := h2.Encode()
	require.NoError(t, err)

	outcomes := f.engine.SubmitHeaders([][]byte{raw2, raw1}, testPeer)
	require.Len(t, outcomes, 2)
	assert.Equal(t, chainsync.StatusAwaitingParent, outcomes[0].Status)
	assert.Equal(t, chainsync.StatusVerified, outcomes[1].Status)

	// the deferred child lands on resubmission
	out := f.engine.SubmitHeader(raw2, testPeer)
	assert.Equal(t, chainsync.StatusVerified, out.Status)
}

func TestSubmitHeadersEmpty(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.engine.SubmitHeaders(nil, testPeer))
}

func TestSubmitHeadersIdentity(t *testing.T) {
	f := newFixture(t)

	h1 := f.childOf(f.genesis, 0)
	raw, err := h1.Encode()
	require.NoError(t, err)

	outcomes := f.engine.SubmitHeaders([][]byte{raw}, testPeer)
	require.Len(t, outcomes, 1)
	assert.Equal(t, h1.Hash(), outcomes[0].Hash)
	assert.Equal(t, h1.Number, outcomes[0].Number)
	assert.Equal(t, testPeer, outcomes[0].Peer)
}
