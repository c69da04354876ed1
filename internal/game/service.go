// internal/game/service.go
package game

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jason-s-yu/tambola/internal/auth"
	"github.com/jason-s-yu/tambola/internal/models"
	"github.com/sirupsen/logrus"
)

const platformCharge = models.FixedPlatformChargePercentage

// Query selects documents from the games collection.
type Query = models.GameQuery

// Store is the persistence collaborator for the games collection.
type Store interface {
	InsertGame(ctx context.Context, doc models.Document) error
	ListGames(ctx context.Context, q Query) ([]models.Document, error)
}

// Cache holds the most recent waiting-games listing. Every invalidation bumps a
// generation; a listing read under an older generation is never stored.
type Cache interface {
	GetWaitingGames(ctx context.Context) ([]*models.Game, bool, error)
	WaitingGamesGeneration(ctx context.Context) (int64, error)
	// SetWaitingGames stores games only while the generation is still gen.
	SetWaitingGames(ctx context.Context, gen int64, games []*models.Game) (bool, error)
	InvalidateWaitingGames(ctx context.Context) error
}

// Publisher announces newly created games.
type Publisher interface {
	PublishGameCreated(ctx context.Context, g *models.Game) error
}

// CreateGameInput is the creation form as submitted by the dashboard.
type CreateGameInput struct {
	Name           string    `json:"name" validate:"required"`
	Description    string    `json:"description" validate:"required"`
	TicketPrice    float64   `json:"ticketPrice" validate:"gte=0.1"`
	TicketCurrency string    `json:"ticketCurrency" validate:"oneof=$ ₹"`
	TicketLimit    int       `json:"ticketLimit" validate:"gte=2,lte=100"`
	StartTime      time.Time `json:"startTime" validate:"required"`

	FullHousePrizePercentage   float64 `json:"fullHousePrizePercentage" validate:"gte=0,lte=90"`
	FourCornersPrizePercentage float64 `json:"fourCornersPrizePercentage" validate:"gte=0,lte=90"`
	RowPrizePercentage         float64 `json:"rowPrizePercentage" validate:"gte=0,lte=90"`
	EarlyFivePrizePercentage   float64 `json:"earlyFivePrizePercentage" validate:"gte=0,lte=90"`
}

// Service creates and lists game records.
type Service struct {
	store     Store
	cache     Cache
	publisher Publisher
	logger    *logrus.Logger
	validate  *validator.Validate
	now       func() time.Time
	listLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithCache serves ListWaitingGames from c when it holds a listing.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher announces every created game through p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithListLimit caps how many waiting games are read; 0 means no cap.
func WithListLimit(n int) Option {
	return func(s *Service) { s.listLimit = n }
}

// NewService returns a Service backed by store.
func NewService(store Store, logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// CreateGame validates in, builds a waiting game hosted by the caller and stores it.
// Nothing is written when validation fails or ctx is done before the insert.
func (s *Service) CreateGame(ctx context.Context, id auth.Identity, in CreateGameInput) (*models.Game, error) {
	if id.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fromValidator(err)
	}
	if !models.ValidatePrizePercentages(
		in.FullHousePrizePercentage,
		in.FourCornersPrizePercentage,
		in.RowPrizePercentage,
		in.EarlyFivePrizePercentage,
	) {
		return nil, &ValidationError{Field: "prizeDistribution", Message: MsgPrizeSum}
	}

	g := models.NewGameWithDefaults(id.UserID, s.now())
	g.Name = in.Name
	g.Description = in.Description
	g.TicketPrice = in.TicketPrice
	g.TicketCurrency = in.TicketCurrency
	g.TicketLimit = in.TicketLimit
	g.StartTime = in.StartTime
	g.Status = models.StatusWaiting
	g.PrizeDistribution = models.PrizeDistribution{
		PlatformChargePercentage:   platformCharge,
		FullHousePrizePercentage:   in.FullHousePrizePercentage,
		FourCornersPrizePercentage: in.FourCornersPrizePercentage,
		RowPrizePercentage:         in.RowPrizePercentage,
		EarlyFivePrizePercentage:   in.EarlyFivePrizePercentage,
	}
	if err := g.PrizeDistribution.Validate(); err != nil {
		return nil, &ValidationError{Field: "prizeDistribution", Message: err.Error()}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.store.InsertGame(ctx, g.ToPortable()); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: inserting game %s: %w", ErrPersistence, g.ID, err)
	}

	log := s.logger.WithFields(logrus.Fields{"game_id": g.ID, "host_id": g.HostID})
	log.Info("game created")

	if s.cache != nil {
		if err := s.cache.InvalidateWaitingGames(ctx); err != nil {
			log.WithError(err).Warn("failed to invalidate waiting games cache")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishGameCreated(ctx, g); err != nil {
			log.WithError(err).Warn("failed to publish game created event")
		}
	}
	return g, nil
}

// ListWaitingGames returns waiting games, newest first. Records that fail to
// deserialize are logged and skipped.
func (s *Service) ListWaitingGames(ctx context.Context) ([]*models.Game, error) {
	cacheable := false
	var gen int64
	if s.cache != nil {
		games, ok, err := s.cache.GetWaitingGames(ctx)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("failed to read waiting games cache")
		case ok:
			return games, nil
		}

		// read before the store so a create landing mid-listing is detected
		gen, err = s.cache.WaitingGamesGeneration(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("failed to read waiting games generation")
		}
		cacheable = err == nil
	}

	docs, err := s.store.ListGames(ctx, models.WaitingGamesQuery(s.listLimit))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: listing waiting games: %w", ErrPersistence, err)
	}

	games := make([]*models.Game, 0, len(docs))
	for _, doc := range docs {
		g, err := models.GameFromPortable(doc)
		if err != nil {
			fields := logrus.Fields{"error": err}
			var dErr *models.DeserializationError
			if errors.As(err, &dErr) {
				fields["game_id"] = dErr.ID
				fields["field"] = dErr.Field
			}
			s.logger.WithFields(fields).Warn("skipping malformed game record")
			continue
		}
		games = append(games, g)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cacheable {
		stored, err := s.cache.SetWaitingGames(ctx, gen, games)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("failed to cache waiting games")
		case !stored:
			s.logger.Debug("waiting games changed during listing, not caching")
		}
	}
	return games, nil
}
