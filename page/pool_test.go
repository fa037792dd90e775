package page_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/kma/memutils"
	"github.com/vkngwrapper/kma/page"
	"golang.org/x/exp/slog"
)

func TestPoolDefaults(t *testing.T) {
	pool, err := page.NewPool(nil, page.PoolCreateOptions{})
	require.NoError(t, err)

	require.Equal(t, page.DefaultPageSize, pool.PageSize())
	require.Equal(t, page.DefaultMaxPages, pool.MaxPages())
	require.Equal(t, page.Stats{PageSize: 8192}, pool.Stats())
	require.NoError(t, pool.Destroy())
}

func TestPoolRejectsBadOptions(t *testing.T) {
	_, err := page.NewPool(nil, page.PoolCreateOptions{PageSize: 3000})
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))

	_, err = page.NewPool(nil, page.PoolCreateOptions{MaxPages: -1})
	require.Error(t, err)
}

func TestPoolAcquireRelease(t *testing.T) {
	pool, err := page.NewPool(slog.Default(), page.PoolCreateOptions{PageSize: 4096, MaxPages: 4})
	require.NoError(t, err)

	first, err := pool.AcquirePage()
	require.NoError(t, err)
	second, err := pool.AcquirePage()
	require.NoError(t, err)

	require.Equal(t, 0, first.ID())
	require.Equal(t, 1, second.ID())
	require.Equal(t, 4096, first.Size())
	require.Equal(t, 4096, cap(first.Data()))

	first.Data()[0] = 0xAA
	first.Data()[4095] = 0xBB
	require.Equal(t, byte(0), second.Data()[0])

	require.Equal(t, page.Stats{Requested: 2, InUse: 2, PageSize: 4096}, pool.Stats())

	require.NoError(t, pool.ReleasePage(first))
	require.Equal(t, page.Stats{Requested: 2, Freed: 1, InUse: 1, PageSize: 4096}, pool.Stats())

	// Freed slots are reused but ids are not
	third, err := pool.AcquirePage()
	require.NoError(t, err)
	require.Equal(t, 2, third.ID())
	require.Equal(t, byte(0xAA), third.Data()[0])

	require.NoError(t, pool.ReleasePage(second))
	require.NoError(t, pool.ReleasePage(third))
	require.Equal(t, page.Stats{Requested: 3, Freed: 3, InUse: 0, PageSize: 4096}, pool.Stats())
	require.NoError(t, pool.Destroy())
}

func TestPoolExhaustion(t *testing.T) {
	pool, err := page.NewPool(nil, page.PoolCreateOptions{PageSize: 1024, MaxPages: 2})
	require.NoError(t, err)

	a, err := pool.AcquirePage()
	require.NoError(t, err)
	_, err = pool.AcquirePage()
	require.NoError(t, err)

	_, err = pool.AcquirePage()
	require.True(t, errors.Is(err, page.ErrPagesExhausted))
	require.Equal(t, page.Stats{Requested: 2, InUse: 2, PageSize: 1024}, pool.Stats())

	require.NoError(t, pool.ReleasePage(a))
	_, err = pool.AcquirePage()
	require.NoError(t, err)

	require.Error(t, pool.Destroy())
}

func TestPoolRejectsUnknownPages(t *testing.T) {
	pool, err := page.NewPool(nil, page.PoolCreateOptions{PageSize: 1024, MaxPages: 2})
	require.NoError(t, err)

	held, err := pool.AcquirePage()
	require.NoError(t, err)

	err = pool.ReleasePage(nil)
	require.True(t, errors.Is(err, page.ErrUnknownPage))

	err = pool.ReleasePage(page.New(held.ID(), make([]byte, 1024)))
	require.True(t, errors.Is(err, page.ErrUnknownPage))

	err = pool.ReleasePage(page.New(57, make([]byte, 1024)))
	require.True(t, errors.Is(err, page.ErrUnknownPage))

	require.Equal(t, page.Stats{Requested: 1, InUse: 1, PageSize: 1024}, pool.Stats())

	require.NoError(t, pool.ReleasePage(held))
	err = pool.ReleasePage(held)
	require.True(t, errors.Is(err, page.ErrUnknownPage))
	require.Equal(t, page.Stats{Requested: 1, Freed: 1, PageSize: 1024}, pool.Stats())
}

func TestPoolMappedArena(t *testing.T) {
	pool, err := page.NewPool(nil, page.PoolCreateOptions{
		Flags:    page.PoolCreateMappedArena | page.PoolCreateExternallySynchronized,
		PageSize: 8192,
		MaxPages: 8,
	})
	require.NoError(t, err)
	require.Equal(t, "PoolCreateExternallySynchronized|PoolCreateMappedArena", pool.Flags().String())

	pages := make([]*page.Page, 0, 8)
	for i := 0; i < 8; i++ {
		p, err := pool.AcquirePage()
		require.NoError(t, err)
		for j := range p.Data() {
			p.Data()[j] = byte(i)
		}
		pages = append(pages, p)
	}

	for i, p := range pages {
		require.Equal(t, byte(i), p.Data()[8191])
	}

	for _, p := range pages {
		require.NoError(t, pool.ReleasePage(p))
	}
	require.Equal(t, page.Stats{Requested: 8, Freed: 8, PageSize: 8192}, pool.Stats())
}
