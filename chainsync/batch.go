package chainsync

import (
	"github.com/creachadair/taskgroup"

	"github.com/arclight-network/arclight/types"
)

// SubmitHeaders submits a batch of header blobs, typically a response to a
// range request. Decoding and hashing fan out across workers; insertion
// stays in submission order so children follow their parents, which is
// what makes range responses land without awaiting-parent round trips.
func (e *Engine) SubmitHeaders(raws [][]byte, peer PeerID) []Outcome {
	hdrs := make([]*types.Header, len(raws))
	errs := make([]error, len(raws))

	g := taskgroup.New(nil)
	for i := range raws {
		i := i
		g.Go(func() error {
			hdrs[i], errs[i] = types.DecodeHeader(raws[i])
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make([]Outcome, len(raws))
	for i := range raws {
		if errs[i] != nil {
			e.metrics.HeadersSubmitted.With("status", string(StatusBadEncoding)).Add(1)
			outcomes[i] = Outcome{Status: StatusBadEncoding, Err: errs[i], Peer: peer}
			continue
		}
		outcomes[i] = e.submitHeader(hdrs[i], peer)
	}
	return outcomes
}
