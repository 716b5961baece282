package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryFor(t *testing.T) {
	testCases := []struct {
		nodeID  NodeID
		sources []string
		want    string
	}{
		{"n1", nil, "node.id='n1'"},
		{"n1", []string{EventSourceMempool}, "node.id='n1' AND event.source='mempool'"},
		{
			"n1",
			[]string{EventSourceExecutor, EventSourceBackend},
			"node.id='n1' AND event.source IN ('executor', 'backend')",
		},
	}

	for _, tc := range testCases {
		q := QueryFor(tc.nodeID, tc.sources...)
		assert.Equal(t, tc.want, q.String())
	}
}

func TestQueryForMatching(t *testing.T) {
	q := QueryFor("n1", EventSourceExecutor, EventSourceBackend)

	assert.True(t, q.Matches(map[string]string{NodeIDKey: "n1", EventSourceKey: EventSourceExecutor}))
	assert.True(t, q.Matches(map[string]string{NodeIDKey: "n1", EventSourceKey: EventSourceBackend}))

	// other node, other source, missing tags
	assert.False(t, q.Matches(map[string]string{NodeIDKey: "n2", EventSourceKey: EventSourceExecutor}))
	assert.False(t, q.Matches(map[string]string{NodeIDKey: "n1", EventSourceKey: EventSourceMempool}))
	assert.False(t, q.Matches(map[string]string{NodeIDKey: "n1"}))
}
