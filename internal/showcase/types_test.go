package showcase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProjectDefaultsToSentinel(t *testing.T) {
	t.Parallel()

	p := NewProject()
	require.Equal(t, []string{Sentinel, Sentinel, Sentinel, Sentinel, Sentinel, Sentinel}, p.Row())
}

func TestSetPrizesKeepsFlagInSync(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		count     int
		wantCount int
		wantFlag  bool
		wantRow   []string
	}{
		{"none", 0, 0, false, []string{"False", "0"}},
		{"one", 1, 1, true, []string{"True", "1"}},
		{"several", 4, 4, true, []string{"True", "4"}},
		{"negative clamps", -2, 0, false, []string{"False", "0"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProject()
			p.SetPrizes(tc.count)
			require.Equal(t, tc.wantCount, p.PrizeCount)
			require.Equal(t, tc.wantFlag, p.HasPrize)
			require.True(t, p.PrizesResolved)
			require.Equal(t, tc.wantRow, p.Row()[4:])
		})
	}
}

func TestRowMatchesColumns(t *testing.T) {
	t.Parallel()

	p := Project{
		Link:        "https://ethglobal.com/showcase/zk-vote-abc12",
		Name:        "zkVote",
		Description: "Private voting, with commas",
		Event:       "ETHGlobal Brussels",
	}
	p.SetPrizes(2)
	row := p.Row()
	require.Len(t, row, len(Columns))
	require.Equal(t, "https://ethglobal.com/showcase/zk-vote-abc12", row[0])
	require.Equal(t, "Private voting, with commas", row[2])
	require.Equal(t, "True", row[4])
	require.Equal(t, "2", row[5])
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://ethglobal.com/showcase?page=1", PageURL("https://ethglobal.com/showcase?page=", 1))
	require.Equal(t, "https://ethglobal.com/showcase?page=42", PageURL("https://ethglobal.com/showcase?page=", 42))
}
