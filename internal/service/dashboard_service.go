package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/lifecycle"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/repository"
)

// eventFetchLimit bounds how many submissions are read per kind before
// orphans and dismissed items are filtered out.
const eventFetchLimit = 200

// ClientDashboard is what a client sees on the portal home.
type ClientDashboard struct {
	Client      ClientView    `json:"client"`
	NextCheckIn time.Time     `json:"nextCheckIn"`
	LastCheck   *domain.Check `json:"lastCheck,omitempty"`
}

type DashboardService interface {
	// Feed is the combined most-recent activity window.
	Feed(ctx context.Context, sessionID string) ([]lifecycle.Item, error)
	// Updates is the per-kind activity view.
	Updates(ctx context.Context, sessionID string) (map[lifecycle.Kind][]lifecycle.Item, error)
	// Dismiss hides an item for this session only.
	Dismiss(sessionID, itemID string)
	// EndSession drops the session's dismissed set.
	EndSession(sessionID string)
	Stats(ctx context.Context) (*lifecycle.Stats, error)
	ClientDashboard(ctx context.Context, clientID primitive.ObjectID) (*ClientDashboard, error)
}

type dashboardService struct {
	clientRepo   repository.ClientRepository
	paymentRepo  repository.PaymentRepository
	checkRepo    repository.CheckRepository
	activityRepo repository.ActivityRepository
	aggregator   *lifecycle.Aggregator
	dismissed    *lifecycle.DismissStore
	log          logging.Logger
	loc          *time.Location
	feedLimit    int
	cadenceDays  int
	now          func() time.Time
}

func NewDashboardService(
	clientRepo repository.ClientRepository,
	paymentRepo repository.PaymentRepository,
	checkRepo repository.CheckRepository,
	activityRepo repository.ActivityRepository,
	classifier lifecycle.Classifier,
	dismissed *lifecycle.DismissStore,
	log logging.Logger,
	feedLimit int,
	cadenceDays int,
) DashboardService {
	return &dashboardService{
		clientRepo:   clientRepo,
		paymentRepo:  paymentRepo,
		checkRepo:    checkRepo,
		activityRepo: activityRepo,
		aggregator:   lifecycle.NewAggregator(classifier),
		dismissed:    dismissed,
		log:          log.With("service", "dashboard"),
		loc:          classifier.Location,
		feedLimit:    feedLimit,
		cadenceDays:  cadenceDays,
		now:          time.Now,
	}
}

func (s *dashboardService) Feed(ctx context.Context, sessionID string) ([]lifecycle.Item, error) {
	src, err := s.sources(ctx)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Build(src, s.now(), lifecycle.DashboardFeed(s.feedLimit), s.dismissed.Snapshot(sessionID)), nil
}

func (s *dashboardService) Updates(ctx context.Context, sessionID string) (map[lifecycle.Kind][]lifecycle.Item, error) {
	src, err := s.sources(ctx)
	if err != nil {
		return nil, err
	}
	opts := lifecycle.UpdatesFeed()
	groups := lifecycle.GroupByKind(s.aggregator.Build(src, s.now(), opts, s.dismissed.Snapshot(sessionID)))
	for _, k := range opts.Kinds {
		if groups[k] == nil {
			groups[k] = []lifecycle.Item{}
		}
	}
	return groups, nil
}

func (s *dashboardService) Dismiss(sessionID, itemID string) {
	s.dismissed.Dismiss(sessionID, itemID)
}

func (s *dashboardService) EndSession(sessionID string) {
	s.dismissed.Forget(sessionID)
}

func (s *dashboardService) sources(ctx context.Context) (lifecycle.Sources, error) {
	clients, err := s.clientRepo.List(ctx)
	if err != nil {
		s.log.Error(ctx, "feed: list clients failed", "error", err)
		return lifecycle.Sources{}, err
	}
	checks, err := s.activityRepo.RecentChecks(ctx, eventFetchLimit)
	if err != nil {
		s.log.Error(ctx, "feed: list checks failed", "error", err)
		return lifecycle.Sources{}, err
	}
	anamnesi, err := s.activityRepo.RecentAnamnesi(ctx, eventFetchLimit)
	if err != nil {
		s.log.Error(ctx, "feed: list anamnesi failed", "error", err)
		return lifecycle.Sources{}, err
	}
	return lifecycle.Sources{Clients: clients, Checks: checks, Anamnesi: anamnesi}, nil
}

func (s *dashboardService) Stats(ctx context.Context) (*lifecycle.Stats, error) {
	now := s.now()
	clients, err := s.clientRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	yearStart := time.Date(now.In(s.loc).Year(), time.January, 1, 0, 0, 0, 0, s.loc)
	payments, err := s.paymentRepo.ListPaidBetween(ctx, yearStart, yearStart.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}
	st := lifecycle.ComputeStats(clients, payments, now, s.loc)
	return &st, nil
}

// ClientDashboard uses the stored next check-in, falling back to a
// suggestion from the latest check (or enrollment when there is none).
func (s *dashboardService) ClientDashboard(ctx context.Context, clientID primitive.ObjectID) (*ClientDashboard, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	last, err := s.checkRepo.Latest(ctx, clientID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	out := &ClientDashboard{
		Client:    newClientView(s.aggregator.Classifier, *client, s.now()),
		LastCheck: last,
	}
	switch {
	case client.NextCheckIn != nil && !client.NextCheckIn.IsZero():
		out.NextCheckIn = *client.NextCheckIn
	case last != nil:
		out.NextCheckIn = lifecycle.SuggestCheckIn(&last.CreatedAt, client.CreatedAt, s.cadenceDays)
	default:
		out.NextCheckIn = lifecycle.SuggestCheckIn(nil, client.CreatedAt, s.cadenceDays)
	}
	return out, nil
}
