package service

import (
	"context"
	"sync"

	"carbonregistry/internal/project/models"
	dErrors "carbonregistry/pkg/domain-errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"
)

func (s *ServiceSuite) TestUpdateStatus_AuthoriseThenTransfer() {
	s.noConstants()
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil) // creation
	p := s.createProject(10)

	var published []models.TransitionEvent
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e models.TransitionEvent) error {
			published = append(published, e)
			return nil
		}).Times(2)

	updated, err := s.service.UpdateStatus(s.ctx, UpdateStatusRequest{
		ProjectID:      p.ProjectID,
		Status:         models.StatusAuthorised,
		ExpectedStatus: models.StatusRegistered,
		Comment:        "documents verified",
	})
	s.Require().NoError(err)
	s.Equal(models.StatusAuthorised, updated.Status)
	s.Equal(p.SerialNumber, updated.SerialNumber)

	_, err = s.service.UpdateStatus(s.ctx, UpdateStatusRequest{
		ProjectID:      p.ProjectID,
		Status:         models.StatusTransferred,
		ExpectedStatus: models.StatusAuthorised,
	})
	s.Require().NoError(err)

	history, err := s.service.History(s.ctx, p.ProjectID)
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	for i, e := range history {
		s.Equal(i+1, e.Sequence)
	}
	s.Equal(models.StatusRegistered, history[1].PriorStatus)
	s.Equal(models.StatusAuthorised, history[1].NewStatus)
	s.Equal("documents verified", history[1].Comment)
	s.Equal("officer-7", history[1].Actor)
	s.Equal(models.StatusTransferred, history[2].NewStatus)

	s.Require().Len(published, 2)
	s.Equal(2, published[0].Sequence)
	s.Equal(3, published[1].Sequence)
	s.Equal(p.SerialNumber, published[1].SerialNumber)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.StatusTransitions.WithLabelValues("Registered", "Authorised")))
}

func (s *ServiceSuite) TestUpdateStatus_RepeatedUpdateIsStale() {
	s.noConstants()
	s.allowPublish()
	p := s.createProject(10)
	req := UpdateStatusRequest{
		ProjectID:      p.ProjectID,
		Status:         models.StatusAuthorised,
		ExpectedStatus: models.StatusRegistered,
	}

	_, err := s.service.UpdateStatus(s.ctx, req)
	s.Require().NoError(err)
	_, err = s.service.UpdateStatus(s.ctx, req)

	s.True(dErrors.HasCode(err, dErrors.CodeStaleStatus), "got %v", err)
	history, err := s.service.History(s.ctx, p.ProjectID)
	s.Require().NoError(err)
	s.Len(history, 2)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.StaleStatusConflicts))
}

func (s *ServiceSuite) TestUpdateStatus_Refusals() {
	s.noConstants()
	s.allowPublish()
	p := s.createProject(10)

	s.Run("transition not on the allow-list", func() {
		_, err := s.service.UpdateStatus(s.ctx, UpdateStatusRequest{
			ProjectID:      p.ProjectID,
			Status:         models.StatusTransferred,
			ExpectedStatus: models.StatusRegistered,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("rejected is terminal", func() {
		_, err := s.service.UpdateStatus(s.ctx, UpdateStatusRequest{
			ProjectID:      p.ProjectID,
			Status:         models.StatusRegistered,
			ExpectedStatus: models.StatusRejected,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("unknown status", func() {
		_, err := s.service.UpdateStatus(s.ctx, UpdateStatusRequest{
			ProjectID:      p.ProjectID,
			Status:         "Archived",
			ExpectedStatus: models.StatusRegistered,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown project", func() {
		_, err := s.service.UpdateStatus(s.ctx, UpdateStatusRequest{
			ProjectID:      "9999",
			Status:         models.StatusAuthorised,
			ExpectedStatus: models.StatusRegistered,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing project id", func() {
		_, err := s.service.UpdateStatus(s.ctx, UpdateStatusRequest{
			Status:         models.StatusAuthorised,
			ExpectedStatus: models.StatusRegistered,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	history, err := s.service.History(s.ctx, p.ProjectID)
	s.Require().NoError(err)
	s.Len(history, 1, "refused transitions must not write")
	current, err := s.service.Get(s.ctx, p.ProjectID)
	s.Require().NoError(err)
	s.Equal(models.StatusRegistered, current.Status)
}

func (s *ServiceSuite) TestUpdateStatus_CustomPolicy() {
	s.noConstants()
	s.allowPublish()
	s.service = s.newService(s.counters, WithTransitions(models.NewTransitionPolicy(
		models.Transition{From: models.StatusRegistered, To: models.StatusRejected},
		models.Transition{From: models.StatusRejected, To: models.StatusRegistered},
	)))
	p := s.createProject(3)

	_, err := s.service.UpdateStatus(s.ctx, UpdateStatusRequest{ProjectID: p.ProjectID, Status: models.StatusAuthorised, ExpectedStatus: models.StatusRegistered})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, err = s.service.UpdateStatus(s.ctx, UpdateStatusRequest{ProjectID: p.ProjectID, Status: models.StatusRejected, ExpectedStatus: models.StatusRegistered})
	s.Require().NoError(err)
	reopened, err := s.service.UpdateStatus(s.ctx, UpdateStatusRequest{ProjectID: p.ProjectID, Status: models.StatusRegistered, ExpectedStatus: models.StatusRejected})
	s.Require().NoError(err)
	s.Equal(models.StatusRegistered, reopened.Status)
}

func (s *ServiceSuite) TestUpdateStatus_ConcurrentUpdatesHaveOneWinner() {
	s.noConstants()
	s.allowPublish()
	p := s.createProject(10)

	targets := []models.Status{models.StatusAuthorised, models.StatusRejected}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to models.Status) {
			defer wg.Done()
			_, errs[i] = s.service.UpdateStatus(s.ctx, UpdateStatusRequest{
				ProjectID:      p.ProjectID,
				Status:         to,
				ExpectedStatus: models.StatusRegistered,
			})
		}(i, to)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeStaleStatus), "got %v", err)
	}
	s.Equal(1, wins)

	history, err := s.service.History(s.ctx, p.ProjectID)
	s.Require().NoError(err)
	s.Len(history, 2)
}
