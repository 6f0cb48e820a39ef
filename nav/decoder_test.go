package nav

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scannedGrid(t *testing.T) *GridMap {
	t.Helper()
	g := newSmallGrid(t, 12, 10)
	g.Update(Pose{}, []float64{3, 2.5, 4}, []float64{0, 1.5, 3.1})
	return g
}

func TestSnapshot(t *testing.T) {
	g := scannedGrid(t)
	s := g.Snapshot("bot-a")

	assert.Equal(t, "bot-a", s.AgentID)
	assert.Equal(t, 12, s.Width)
	assert.Equal(t, 10, s.Height)
	assert.Equal(t, 1.0, s.Resolution)
	assert.Equal(t, g.Values(), s.Values)
	assert.NotZero(t, s.Timestamp)
	_, err := uuid.Parse(s.MessageID)
	assert.NoError(t, err)

	assert.NotEqual(t, s.MessageID, g.Snapshot("bot-a").MessageID, "every snapshot gets its own id")
}

func TestEncodeDecodeSnapshot(t *testing.T) {
	s := scannedGrid(t).Snapshot("bot-a")

	data, err := EncodeSnapshot(s)
	require.NoError(t, err)
	assert.NotEqual(t, byte('{'), data[0], "encoded form is compressed")

	got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestDecodeSnapshot_RawJSON(t *testing.T) {
	raw := `{"agentId":"bot-b","width":2,"height":2,"resolution":0.5,"values":[1,2,3,4]}`
	s, err := DecodeSnapshot([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "bot-b", s.AgentID)
	assert.Equal(t, []float64{1, 2, 3, 4}, s.Values)
}

func TestDecodeSnapshot_Errors(t *testing.T) {
	compress := func(v any) []byte {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		_, err = w.Write(raw)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return buf.Bytes()
	}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "empty data"},
		{"garbage", []byte{0x00, 0x01, 0x02}, "unknown format"},
		{"bad json", []byte(`{"width":`), "parsing snapshot JSON"},
		{"zero size", []byte(`{"width":0,"height":3,"values":[]}`), "invalid size"},
		{"short values", compress(GridSnapshot{Width: 2, Height: 2, Values: []float64{1}}), "has 1 values, want 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSnapshot(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMergeSnapshot(t *testing.T) {
	peer := scannedGrid(t)
	own := newSmallGrid(t, 12, 10)

	require.NoError(t, own.MergeSnapshot(peer.Snapshot("bot-b"), 1))
	assert.Equal(t, peer.Values(), own.Values())
}

func TestMergeSnapshot_Mismatch(t *testing.T) {
	own := newSmallGrid(t, 12, 10)

	assert.Error(t, own.MergeSnapshot(nil, 1))

	other := newSmallGrid(t, 10, 10).Snapshot("bot-b")
	assert.ErrorContains(t, own.MergeSnapshot(other, 1), "grid is 10x10")

	s := own.Snapshot("bot-b")
	s.Resolution = 0.5
	assert.ErrorContains(t, own.MergeSnapshot(s, 1), "resolution")
}

func TestSnapshot_ToGridMap(t *testing.T) {
	src := scannedGrid(t)
	s := src.Snapshot("bot-a")

	base := DefaultConfig().Grid
	g, err := s.ToGridMap(base)
	require.NoError(t, err)
	assert.Equal(t, 12, g.Width())
	assert.Equal(t, 1.0, g.Resolution())
	assert.Equal(t, src.Values(), g.Values())
	assert.Equal(t, src.ToTernary().Cells, g.ToTernary().Cells)

	s.Width = 1
	s.Values = []float64{0}
	_, err = s.ToGridMap(base)
	assert.Error(t, err)
}
