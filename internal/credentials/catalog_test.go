package credentials

import (
	"testing"
	"time"

	"github.com/ipxyd/ipxyd/internal/model"
	"github.com/stretchr/testify/require"
)

func sampleLineup() *InputLineup {
	return &InputLineup{
		InputName: "input-a",
		InputType: "xtream",
		BatchURL:  "/tmp/input-a.csv",
		Main:      &model.ProviderAccount{Name: "input-a", InputName: "input-a", ExpDate: 1000},
		Aliases: []*model.ProviderAccount{
			{Name: "input-a-bob", InputName: "input-a", ExpDate: 2000},
			{Name: "input-a-carol", InputName: "input-a", ExpDate: 0},
		},
	}
}

func TestCatalogSetAndLineup(t *testing.T) {
	c := NewCatalog()
	c.Set(sampleLineup())

	got := c.Lineup("input-a")
	require.NotNil(t, got)
	require.Len(t, got.Accounts(), 3)
	require.Equal(t, []string{"input-a"}, c.InputNames())

	require.Nil(t, c.Lineup("unknown"))
}

func TestCatalogRemove(t *testing.T) {
	c := NewCatalog()
	c.Set(sampleLineup())
	c.Remove("input-a")
	require.Nil(t, c.Lineup("input-a"))
	require.Empty(t, c.InputNames())
}

func TestCatalogExpiredAccountsSortedSoonestFirstSkipsUnset(t *testing.T) {
	c := NewCatalog()
	c.Set(sampleLineup())

	now := time.Unix(2500, 0)
	expired := c.ExpiredAccounts(now)
	require.Len(t, expired, 2) // exp 1000 and 2000; exp 0 (unset) never counts as expired
	require.Equal(t, "input-a", expired[0].Account.Name)
	require.Equal(t, "input-a-bob", expired[1].Account.Name)
}

func TestCatalogExpiringWithinExcludesAlreadyExpiredAndUnset(t *testing.T) {
	c := NewCatalog()
	c.Set(sampleLineup())

	now := time.Unix(900, 0)
	soon := c.ExpiringWithin(200*time.Second, now) // window [900, 1100]: catches exp 1000 only
	require.Len(t, soon, 1)
	require.Equal(t, "input-a", soon[0].Account.Name)
}

func TestCatalogAllAccounts(t *testing.T) {
	c := NewCatalog()
	c.Set(sampleLineup())
	require.Len(t, c.AllAccounts(), 3)
}
