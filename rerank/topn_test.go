package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/outrank/core"
)

func TestTopNNode(t *testing.T) {
	items := []*core.Item{core.NewItem("a"), core.NewItem("b"), core.NewItem("c")}

	tests := []struct {
		name string
		n    int
		topK int
		want int
	}{
		{name: "explicit n", n: 2, topK: 1, want: 2},
		{name: "falls back to top_k", topK: 1, want: 1},
		{name: "n larger than items", n: 10, want: 3},
		{name: "no limit", want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&TopNNode{N: tt.n}).Process(context.Background(), &core.RankRequest{TopK: tt.topK}, items)
			require.NoError(t, err)
			assert.Len(t, out, tt.want)
			assert.Equal(t, "a", out[0].ID)
		})
	}
}
