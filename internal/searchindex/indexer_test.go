package searchindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawsence/procheck/internal/model"
)

func TestIndexTextFlattensProtocol(t *testing.T) {
	proto := model.GeneratedProtocol{
		Title: "Sepsis Bundle",
		Steps: []model.ProtocolStep{
			{ActionText: "Draw cultures", Explanation: "Obtain blood cultures before antibiotics."},
			{ActionText: "Start fluids", Explanation: "  "},
		},
	}
	text := indexText(proto)
	require.Contains(t, text, "Sepsis Bundle")
	require.Contains(t, text, "Draw cultures: Obtain blood cultures before antibiotics.")
	require.Contains(t, text, "Start fluids")
	require.NotContains(t, text, "Start fluids:")
}

func TestNoopIndexer(t *testing.T) {
	result, err := Noop{}.Index(context.Background(), "u1", make([]model.GeneratedProtocol, 3))
	require.NoError(t, err)
	require.Equal(t, 3, result.Indexed)
	require.Empty(t, result.Errors)
}
