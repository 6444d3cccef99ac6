package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"carbonregistry/internal/project/models"
	id "carbonregistry/pkg/domain"
	"carbonregistry/pkg/platform/sentinel"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerStore interface {
	Create(ctx context.Context, p *models.Project, entry *models.AuditEntry) error
	FindByID(ctx context.Context, projectID string) (*models.Project, error)
	UpdateStatus(ctx context.Context, projectID string, expected, next models.Status, entry *models.AuditEntry, at time.Time) (*models.Project, error)
	History(ctx context.Context, projectID string) ([]*models.AuditEntry, error)
	List(ctx context.Context, q models.Query) (*models.Page, error)
}

var baseTime = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newProject(n int) *models.Project {
	return &models.Project{
		ProjectID:     fmt.Sprintf("%04d", n),
		Title:         fmt.Sprintf("Project %d", n),
		SubDomain:     id.SubDomainAgriculture,
		CountryCode:   "NG",
		SectoralScope: "AFOLU",
		StartTime:     1672531200,
		EndTime:       1675209600,
		Parameters: models.Parameters{
			Agriculture: &models.AgricultureProperties{LandArea: 10, LandAreaUnit: "ha"},
		},
		CreditQuantity:   100,
		StartBlock:       int64(n-1)*100 + 1,
		EndBlock:         int64(n) * 100,
		SerialNumber:     fmt.Sprintf("NG-AFOLU-%04d-2023-%d-%d", n, int64(n-1)*100+1, int64(n)*100),
		ConstantsVersion: models.DefaultConstantsVersion,
		Status:           models.StatusRegistered,
		CreatedAt:        baseTime,
		UpdatedAt:        baseTime,
	}
}

func creationEntry(p *models.Project) *models.AuditEntry {
	return &models.AuditEntry{
		ProjectID: p.ProjectID,
		EventID:   uuid.New(),
		NewStatus: models.StatusRegistered,
		Actor:     "officer",
		CreatedAt: baseTime,
	}
}

func transitionEntry(projectID string, from, to models.Status) *models.AuditEntry {
	return &models.AuditEntry{
		ProjectID:   projectID,
		EventID:     uuid.New(),
		PriorStatus: from,
		NewStatus:   to,
		Actor:       "officer",
		CreatedAt:   baseTime.Add(time.Hour),
	}
}

// runLedgerStoreContract exercises the behaviour every backend must share.
func runLedgerStoreContract(t *testing.T, newStore func(t *testing.T) ledgerStore) {
	ctx := context.Background()

	t.Run("create then read back", func(t *testing.T) {
		s := newStore(t)
		p := newProject(1)
		entry := creationEntry(p)
		require.NoError(t, s.Create(ctx, p, entry))
		assert.Equal(t, 1, entry.Sequence)

		got, err := s.FindByID(ctx, "0001")
		require.NoError(t, err)
		assert.Equal(t, p.SerialNumber, got.SerialNumber)
		assert.Equal(t, models.StatusRegistered, got.Status)
		require.NotNil(t, got.Parameters.Agriculture)
		assert.Equal(t, 10.0, got.Parameters.Agriculture.LandArea)

		history, err := s.History(ctx, "0001")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, 1, history[0].Sequence)
		assert.Equal(t, models.Status(""), history[0].PriorStatus)
		assert.Equal(t, models.StatusRegistered, history[0].NewStatus)
	})

	t.Run("duplicate id or serial conflicts", func(t *testing.T) {
		s := newStore(t)
		p := newProject(1)
		require.NoError(t, s.Create(ctx, p, creationEntry(p)))

		dupID := newProject(1)
		dupID.SerialNumber = "NG-AFOLU-0001-2023-999-1000"
		assert.ErrorIs(t, s.Create(ctx, dupID, creationEntry(dupID)), sentinel.ErrConflict)

		dupSerial := newProject(2)
		dupSerial.SerialNumber = p.SerialNumber
		assert.ErrorIs(t, s.Create(ctx, dupSerial, creationEntry(dupSerial)), sentinel.ErrConflict)
	})

	t.Run("unknown project", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindByID(ctx, "9999")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = s.UpdateStatus(ctx, "9999", models.StatusRegistered, models.StatusAuthorised,
			transitionEntry("9999", models.StatusRegistered, models.StatusAuthorised), baseTime)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		history, err := s.History(ctx, "9999")
		require.NoError(t, err)
		assert.NotNil(t, history)
		assert.Empty(t, history)
	})

	t.Run("compare and set", func(t *testing.T) {
		s := newStore(t)
		p := newProject(1)
		require.NoError(t, s.Create(ctx, p, creationEntry(p)))

		entry := transitionEntry("0001", models.StatusRegistered, models.StatusAuthorised)
		updated, err := s.UpdateStatus(ctx, "0001", models.StatusRegistered, models.StatusAuthorised, entry, baseTime.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.StatusAuthorised, updated.Status)
		assert.Equal(t, 2, entry.Sequence)

		_, err = s.UpdateStatus(ctx, "0001", models.StatusRegistered, models.StatusRejected,
			transitionEntry("0001", models.StatusRegistered, models.StatusRejected), baseTime.Add(2*time.Hour))
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		history, err := s.History(ctx, "0001")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, models.StatusRegistered, history[1].PriorStatus)
		assert.Equal(t, models.StatusAuthorised, history[1].NewStatus)
	})

	t.Run("concurrent compare and set has one winner", func(t *testing.T) {
		s := newStore(t)
		p := newProject(1)
		require.NoError(t, s.Create(ctx, p, creationEntry(p)))

		const writers = 10
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range writers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				to := models.StatusAuthorised
				if i%2 == 0 {
					to = models.StatusRejected
				}
				_, err := s.UpdateStatus(ctx, "0001", models.StatusRegistered, to,
					transitionEntry("0001", models.StatusRegistered, to), baseTime.Add(time.Minute))
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, sentinel.ErrConflict)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
		history, err := s.History(ctx, "0001")
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("list pages in id order with a condition", func(t *testing.T) {
		s := newStore(t)
		for n := 1; n <= 5; n++ {
			p := newProject(n)
			require.NoError(t, s.Create(ctx, p, creationEntry(p)))
		}
		_, err := s.UpdateStatus(ctx, "0002", models.StatusRegistered, models.StatusAuthorised,
			transitionEntry("0002", models.StatusRegistered, models.StatusAuthorised), baseTime)
		require.NoError(t, err)

		page, err := s.List(ctx, models.Query{Page: 2, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "0003", page.Items[0].ProjectID)
		assert.Equal(t, "0004", page.Items[1].ProjectID)

		registered := models.Condition{
			Clause: "status = $1",
			Args:   []any{string(models.StatusRegistered)},
			Match:  func(p *models.Project) bool { return p.Status == models.StatusRegistered },
		}
		page, err = s.List(ctx, models.Query{Page: 1, Size: 10, Condition: registered})
		require.NoError(t, err)
		assert.Equal(t, 4, page.Total)
		for _, p := range page.Items {
			assert.NotEqual(t, "0002", p.ProjectID)
		}

		page, err = s.List(ctx, models.Query{Page: 9, Size: 10})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		assert.Empty(t, page.Items)
	})

	t.Run("list orders ids numerically past the zero padding", func(t *testing.T) {
		s := newStore(t)
		for _, n := range []int{10000, 9999, 10001} {
			p := newProject(n)
			require.NoError(t, s.Create(ctx, p, creationEntry(p)))
		}

		page, err := s.List(ctx, models.Query{Page: 1, Size: 10})
		require.NoError(t, err)
		require.Len(t, page.Items, 3)
		assert.Equal(t, "9999", page.Items[0].ProjectID)
		assert.Equal(t, "10000", page.Items[1].ProjectID)
		assert.Equal(t, "10001", page.Items[2].ProjectID)
	})

	t.Run("list tolerates an unnormalized page", func(t *testing.T) {
		s := newStore(t)
		p := newProject(1)
		require.NoError(t, s.Create(ctx, p, creationEntry(p)))

		page, err := s.List(ctx, models.Query{Page: -1, Size: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})
}
