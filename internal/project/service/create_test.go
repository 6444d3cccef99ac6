package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"sync"

	"carbonregistry/internal/calculator"
	cmodels "carbonregistry/internal/constants/models"
	"carbonregistry/internal/counter"
	"carbonregistry/internal/project/models"
	"carbonregistry/internal/project/service/mocks"
	"carbonregistry/internal/serial"
	id "carbonregistry/pkg/domain"
	dErrors "carbonregistry/pkg/domain-errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"
)

func (s *ServiceSuite) TestCreate_AgricultureWithoutConstants() {
	s.noConstants()
	s.calculator.EXPECT().
		Compute(gomock.Any(), calculator.AgricultureRequest{
			Duration:     2678400,
			DurationUnit: "s",
			LandArea:     40,
			LandAreaUnit: "ha",
		}).
		Return(int64(250), nil)
	s.publisher.EXPECT().
		Publish(gomock.Any(), gomock.AssignableToTypeOf(models.TransitionEvent{})).
		DoAndReturn(func(_ context.Context, e models.TransitionEvent) error {
			s.Equal("0001", e.ProjectID)
			s.Equal(1, e.Sequence)
			s.Equal(models.Status(""), e.PriorStatus)
			s.Equal(models.StatusRegistered, e.NewStatus)
			s.Equal("officer-7", e.Actor)
			return nil
		})

	p, err := s.service.Create(s.ctx, agricultureRequest())

	s.Require().NoError(err)
	s.Equal("0001", p.ProjectID)
	s.Equal(models.DefaultConstantsVersion, p.ConstantsVersion)
	s.Equal(models.StatusRegistered, p.Status)
	s.Equal(int64(250), p.CreditQuantity)
	s.Equal(int64(1), p.StartBlock)
	s.Equal(int64(250), p.EndBlock)
	s.Equal("NG-AFOLU-0001-2023-1-250", p.SerialNumber)
	s.Contains(p.SerialNumber, "NG")
	s.Contains(p.SerialNumber, "AFOLU")
	s.Equal(fixedNow, p.CreatedAt)

	fields, err := serial.Parse(p.SerialNumber)
	s.Require().NoError(err)
	s.Equal(2023, fields.Year)

	history, err := s.service.History(s.ctx, "0001")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(1, history[0].Sequence)
	s.Equal(models.StatusRegistered, history[0].NewStatus)

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ProjectsCreated.WithLabelValues("AGRICULTURE")))
	s.Equal(float64(250), testutil.ToFloat64(s.metrics.CreditsIssued.WithLabelValues("AGRICULTURE")))
}

func (s *ServiceSuite) TestCreate_UsesLatestConstants() {
	s.allowPublish()
	s.constants.EXPECT().Latest(gomock.Any(), id.SubDomainSolar).Return(&cmodels.Version{
		Domain:  id.SubDomainSolar,
		Number:  3,
		Payload: json.RawMessage(`{"emissionFactorPerKWh":0.0007}`),
	}, nil)
	s.calculator.EXPECT().
		Compute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req calculator.Request) (int64, error) {
			solar, ok := req.(calculator.SolarRequest)
			s.Require().True(ok)
			s.Equal("HOUSEHOLD", solar.BuildingType)
			s.Require().NotNil(solar.Constants)
			s.Equal(0.0007, solar.Constants.EmissionFactorPerKWh)
			return 4, nil
		})

	p, err := s.service.Create(s.ctx, solarRequest())

	s.Require().NoError(err)
	s.Equal("3", p.ConstantsVersion)
	s.Equal("LK-1-0001-2024-1-4", p.SerialNumber)
}

func (s *ServiceSuite) TestCreate_SequentialProjectsGetContiguousBlocks() {
	s.noConstants()
	s.allowPublish()

	first := s.createProject(100)
	second := s.createProject(50)

	s.Equal("0001", first.ProjectID)
	s.Equal("0002", second.ProjectID)
	s.Equal(int64(101), second.StartBlock)
	s.Equal(int64(150), second.EndBlock)
	s.NotEqual(first.SerialNumber, second.SerialNumber)
}

func (s *ServiceSuite) TestCreate_ProjectIDWidth() {
	s.noConstants()
	s.allowPublish()
	s.service = s.newService(s.counters, WithProjectIDWidth(6))

	p := s.createProject(1)
	s.Equal("000001", p.ProjectID)
	s.Equal("NG-AFOLU-000001-2023-1-1", p.SerialNumber)
}

func (s *ServiceSuite) TestCreate_RejectedBeforeAllocation() {
	s.noConstants()

	s.Run("invalid country code", func() {
		req := agricultureRequest()
		req.CountryCode = "N1"
		_, err := s.service.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
	})

	s.Run("nil request", func() {
		_, err := s.service.Create(s.ctx, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unsupported sub-domain", func() {
		req := agricultureRequest()
		req.SubDomain = "FORESTRY"
		_, err := s.service.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedSubDomain))
	})

	s.Run("missing sub-domain properties", func() {
		req := agricultureRequest()
		req.Agriculture = nil
		_, err := s.service.Create(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("calculator failure", func() {
		s.calculator.EXPECT().Compute(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("upstream 500"))
		_, err := s.service.Create(s.ctx, agricultureRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeCalculationFailed))
	})

	s.Run("non-positive quantity", func() {
		s.calculator.EXPECT().Compute(gomock.Any(), gomock.Any()).Return(int64(0), nil)
		_, err := s.service.Create(s.ctx, agricultureRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeCalculationFailed))
	})

	for _, name := range []counter.Name{counter.Project, counter.ITMO} {
		v, err := s.counters.Allocate(s.ctx, name, 0)
		s.Require().NoError(err)
		s.Zero(v, "counter %s must not advance", name)
	}
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CalculatorFailures))
}

func (s *ServiceSuite) TestCreate_ConstantsLookupFailure() {
	s.constants.EXPECT().Latest(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeStorageUnavailable, "db down"))

	_, err := s.service.Create(s.ctx, agricultureRequest())
	s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable))
}

func (s *ServiceSuite) TestCreate_AllocationFailuresLeaveGaps() {
	s.noConstants()
	s.allowPublish()
	allocator := mocks.NewMockAllocator(s.ctrl)
	s.service = s.newService(allocator)

	s.Run("project counter unavailable", func() {
		s.calculator.EXPECT().Compute(gomock.Any(), gomock.Any()).Return(int64(10), nil)
		allocator.EXPECT().Allocate(gomock.Any(), counter.Project, int64(1)).
			Return(int64(0), errors.New("dial tcp: connection refused"))

		_, err := s.service.Create(s.ctx, agricultureRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable))
	})

	s.Run("credit block unavailable after the project id was taken", func() {
		s.calculator.EXPECT().Compute(gomock.Any(), gomock.Any()).Return(int64(10), nil)
		gomock.InOrder(
			allocator.EXPECT().Allocate(gomock.Any(), counter.Project, int64(1)).Return(int64(0), nil),
			allocator.EXPECT().Allocate(gomock.Any(), counter.ITMO, int64(10)).
				Return(int64(0), errors.New("i/o timeout")),
		)

		_, err := s.service.Create(s.ctx, agricultureRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeStorageUnavailable))
	})

	s.Run("the next creation does not reuse the consumed id", func() {
		s.calculator.EXPECT().Compute(gomock.Any(), gomock.Any()).Return(int64(10), nil)
		gomock.InOrder(
			allocator.EXPECT().Allocate(gomock.Any(), counter.Project, int64(1)).Return(int64(1), nil),
			allocator.EXPECT().Allocate(gomock.Any(), counter.ITMO, int64(10)).Return(int64(0), nil),
		)

		p, err := s.service.Create(s.ctx, agricultureRequest())
		s.Require().NoError(err)
		s.Equal("0002", p.ProjectID)
	})

	s.Equal(float64(2), testutil.ToFloat64(s.metrics.AllocationFailures.WithLabelValues("PROJECT"))+
		testutil.ToFloat64(s.metrics.AllocationFailures.WithLabelValues("ITMO")))
}

func (s *ServiceSuite) TestCreate_CancelledBeforeAllocation() {
	s.noConstants()
	ctx, cancel := context.WithCancel(s.ctx)
	s.calculator.EXPECT().Compute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, calculator.Request) (int64, error) {
			cancel()
			return 10, nil
		})

	_, err := s.service.Create(ctx, agricultureRequest())

	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	v, err := s.counters.Allocate(s.ctx, counter.Project, 0)
	s.Require().NoError(err)
	s.Zero(v)
}

func (s *ServiceSuite) TestCreate_PublishFailureIsNotFatal() {
	s.noConstants()
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	p := s.createProject(5)

	s.Equal("0001", p.ProjectID)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.EventPublishFailures))
}

func (s *ServiceSuite) TestCreate_ConcurrentRequestsGetDisjointNumbers() {
	s.noConstants()
	s.allowPublish()
	const workers = 24
	s.calculator.EXPECT().Compute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req calculator.Request) (int64, error) {
			return int64(req.(calculator.AgricultureRequest).LandArea), nil
		}).Times(workers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		projects []*models.Project
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := agricultureRequest()
			req.Agriculture.LandArea = float64(i + 1)
			p, err := s.service.Create(s.ctx, req)
			s.NoError(err)
			if err == nil {
				mu.Lock()
				projects = append(projects, p)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	s.Require().Len(projects, workers)

	ids := map[string]bool{}
	serials := map[string]bool{}
	for _, p := range projects {
		s.False(ids[p.ProjectID], "duplicate id %s", p.ProjectID)
		s.False(serials[p.SerialNumber], "duplicate serial %s", p.SerialNumber)
		ids[p.ProjectID] = true
		serials[p.SerialNumber] = true
		s.Equal(p.CreditQuantity, p.EndBlock-p.StartBlock+1)
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].StartBlock < projects[j].StartBlock })
	next := int64(1)
	for _, p := range projects {
		s.Equal(next, p.StartBlock, "blocks must be gap-free and non-overlapping")
		next = p.EndBlock + 1
	}
	s.Equal(int64(workers*(workers+1)/2), next-1)
}

func (s *ServiceSuite) TestCreate_OversizedQuantityLeavesBlockCounter() {
	s.allowPublish()
	s.noConstants()
	s.createProject(10)

	s.calculator.EXPECT().Compute(gomock.Any(), gomock.Any()).Return(int64(math.MaxInt64), nil)

	_, err := s.service.Create(s.ctx, agricultureRequest())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeEncodingOverflow))
	block, err := s.counters.Allocate(s.ctx, counter.ITMO, 0)
	s.Require().NoError(err)
	s.Equal(int64(10), block)
}
