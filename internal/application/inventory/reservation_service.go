package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// ReservationConfig holds the TTL policy for new holds
type ReservationConfig struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// DefaultReservationConfig returns a 15 minute default and a one day cap
func DefaultReservationConfig() ReservationConfig {
	return ReservationConfig{
		DefaultTTL: inventory.DefaultReservationTTL,
		MaxTTL:     24 * time.Hour,
	}
}

// ReservationService arbitrates concurrent demand for available stock
type ReservationService struct {
	repos   Repositories
	txScope TransactionScope
	writer  *ledgerWriter
	monitor *AlertMonitor
	metrics Metrics
	config  ReservationConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	repos Repositories,
	txScope TransactionScope,
	monitor *AlertMonitor,
	metrics Metrics,
	config ReservationConfig,
	logger *zap.Logger,
) *ReservationService {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if config.DefaultTTL < 0 {
		config.DefaultTTL = inventory.DefaultReservationTTL
	}
	return &ReservationService{
		repos:   repos,
		txScope: txScope,
		writer:  &ledgerWriter{monitor: monitor, metrics: metrics},
		monitor: monitor,
		metrics: metrics,
		config:  config,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// resolveTTL turns the requested minutes into a duration. The cap is checked
// on the minute count so oversized values cannot wrap around int64.
func (s *ReservationService) resolveTTL(minutes *int) (time.Duration, error) {
	if minutes == nil {
		return s.config.DefaultTTL, nil
	}
	limit := int64(math.MaxInt64 / time.Minute)
	if s.config.MaxTTL > 0 {
		limit = int64(s.config.MaxTTL / time.Minute)
	}
	if *minutes < 0 || int64(*minutes) > limit {
		return 0, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("TTL must be between 0 and %d minutes", limit))
	}
	ttl := time.Duration(*minutes) * time.Minute
	if s.config.MaxTTL > 0 && ttl > s.config.MaxTTL {
		return 0, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("TTL cannot exceed %s", s.config.MaxTTL))
	}
	return ttl, nil
}

// Reserve places a hold if available stock covers it. The availability check
// and the insert run under the stock row lock, so two racing requests for the
// last unit cannot both pass.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*ReservationResponse, error) {
	ttl, err := s.resolveTTL(req.TTLMinutes)
	if err != nil {
		return nil, err
	}

	now := s.now()
	reservation, err := inventory.NewReservation(inventory.ReservationParams{
		VariantID:   req.VariantID,
		SizeID:      req.SizeID,
		Quantity:    req.Quantity,
		Type:        inventory.ReservationType(req.Type),
		ReferenceID: req.ReferenceID,
		UserID:      req.UserID,
		TTL:         &ttl,
	}, now)
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		record, reserved, err := lockCell(ctx, repos, req.VariantID, req.SizeID, now)
		if err != nil {
			return err
		}
		expected, before := record.Version, record.Quantity-reserved
		movement, err := record.PlaceReservation(reservation, reserved, req.Actor)
		if err != nil {
			return err
		}
		if err := repos.ReservationRepo().Create(ctx, reservation); err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		return s.writer.commit(ctx, repos, record, expected, movement, before, now)
	})
	if err != nil {
		var insufficient *inventory.InsufficientStockError
		if errors.As(err, &insufficient) {
			s.metrics.RecordReservationRejected(ctx, "insufficient_stock")
			s.logger.Info("reservation rejected",
				zap.String("variant_id", req.VariantID.String()),
				zap.String("size_id", req.SizeID.String()),
				zap.Int64("available", insufficient.Available),
				zap.Int64("requested", insufficient.Requested),
			)
		}
		return nil, err
	}

	s.metrics.RecordReservationCreated(ctx, req.Type)
	s.logger.Info("reservation created",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("variant_id", req.VariantID.String()),
		zap.String("size_id", req.SizeID.String()),
		zap.Int64("quantity", reservation.Quantity),
		zap.Time("expires_at", reservation.ExpiresAt),
	)
	response := ToReservationResponse(reservation, now)
	return &response, nil
}

// Fulfill turns an active, unexpired hold into a sale. On-hand found short of
// the hold is a consistency violation: it is logged at the highest severity,
// recorded as an alert, and returned to the caller as insufficient stock.
func (s *ReservationService) Fulfill(ctx context.Context, id uuid.UUID, actor string) (*FulfillResponse, error) {
	var (
		reservation *inventory.Reservation
		movement    *inventory.MovementRecord
	)
	now := s.now()
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := repos.ReservationRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		reservation = r
		if err := r.CanFulfill(now); err != nil {
			return err
		}
		record, reserved, err := lockCell(ctx, repos, r.VariantID, r.SizeID, now)
		if err != nil {
			return err
		}
		expected, before := record.Version, record.Quantity-reserved
		m, err := record.FulfillReservation(r, actor, now)
		if err != nil {
			return err
		}
		if err := repos.ReservationRepo().Update(ctx, r); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		if err := s.writer.commit(ctx, repos, record, expected, m, before, now); err != nil {
			return err
		}
		movement = m
		return nil
	})
	if err != nil {
		var violation *inventory.ConsistencyViolationError
		if errors.As(err, &violation) {
			return nil, s.handleViolation(ctx, violation, reservation)
		}
		return nil, err
	}

	s.metrics.RecordReservationClosed(ctx, string(inventory.ReservationStatusFulfilled))
	s.logger.Info("reservation fulfilled",
		zap.String("reservation_id", id.String()),
		zap.String("variant_id", reservation.VariantID.String()),
		zap.String("size_id", reservation.SizeID.String()),
		zap.Int64("new_on_hand", movement.QuantityAfter),
	)
	return &FulfillResponse{
		ReservationID: id,
		NewOnHand:     movement.QuantityAfter,
		Movement:      ToMovementResponse(movement),
	}, nil
}

func (s *ReservationService) handleViolation(ctx context.Context, violation *inventory.ConsistencyViolationError, r *inventory.Reservation) error {
	s.logger.DPanic("stock consistency violation on fulfill",
		zap.String("reservation_id", violation.ReservationID),
		zap.String("variant_id", r.VariantID.String()),
		zap.String("size_id", r.SizeID.String()),
		zap.Int64("on_hand", violation.OnHand),
		zap.Int64("reserved", violation.Reserved),
	)
	if err := s.monitor.RecordViolation(ctx, violation, r.VariantID, r.SizeID); err != nil {
		s.logger.Error("failed to record consistency violation alert",
			zap.String("reservation_id", violation.ReservationID),
			zap.Error(err),
		)
	}
	var insufficient *inventory.InsufficientStockError
	if errors.As(violation, &insufficient) {
		return insufficient
	}
	return violation
}

// Release closes a hold and restores its availability. Releasing a hold that is
// already fulfilled, released or expired succeeds without changing anything.
func (s *ReservationService) Release(ctx context.Context, id uuid.UUID, actor string) (*ReleaseResponse, error) {
	var (
		reservation *inventory.Reservation
		released    bool
	)
	now := s.now()
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := repos.ReservationRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		reservation = r
		if r.IsTerminal() {
			return nil
		}
		record, reserved, err := lockCell(ctx, repos, r.VariantID, r.SizeID, now)
		if err != nil {
			return err
		}
		expected, before := record.Version, record.Quantity-reserved
		movement, err := record.ReleaseReservation(r, actor, now)
		if err != nil {
			return err
		}
		if err := repos.ReservationRepo().Update(ctx, r); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		if err := s.writer.commit(ctx, repos, record, expected, movement, before, now); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if released {
		s.metrics.RecordReservationClosed(ctx, string(inventory.ReservationStatusReleased))
		s.logger.Info("reservation released",
			zap.String("reservation_id", id.String()),
			zap.String("variant_id", reservation.VariantID.String()),
			zap.String("size_id", reservation.SizeID.String()),
		)
	} else {
		s.logger.Debug("release of closed reservation ignored",
			zap.String("reservation_id", id.String()),
			zap.String("status", string(reservation.Status)),
		)
	}
	return &ReleaseResponse{
		Reservation: ToReservationResponse(reservation, now),
		Released:    released,
	}, nil
}

// GetReservation returns one reservation
func (s *ReservationService) GetReservation(ctx context.Context, id uuid.UUID) (*ReservationResponse, error) {
	r, err := s.repos.Reservations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToReservationResponse(r, s.now())
	return &response, nil
}

// ListReservations returns reservations matching the filter, newest first
func (s *ReservationService) ListReservations(ctx context.Context, filter ReservationListFilter) ([]ReservationResponse, int64, error) {
	domainFilter, err := toReservationFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	reservations, total, err := s.repos.Reservations.List(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	responses := make([]ReservationResponse, len(reservations))
	for i, r := range reservations {
		responses[i] = ToReservationResponse(r, now)
	}
	return responses, total, nil
}

func toReservationFilter(filter ReservationListFilter) (inventory.ReservationFilter, error) {
	out := inventory.ReservationFilter{
		ReferenceID: filter.ReferenceID,
		Page: shared.Page{
			Page:      filter.Page,
			PageSize:  filter.PageSize,
			SortBy:    filter.SortBy,
			SortOrder: filter.SortOrder,
		}.Normalize(),
	}
	var err error
	if out.VariantID, err = parseOptionalUUID("variant_id", filter.VariantID); err != nil {
		return out, err
	}
	if out.SizeID, err = parseOptionalUUID("size_id", filter.SizeID); err != nil {
		return out, err
	}
	if out.UserID, err = parseOptionalUUID("user_id", filter.UserID); err != nil {
		return out, err
	}
	if filter.Status != "" {
		status := inventory.ReservationStatus(filter.Status)
		if !status.IsValid() {
			return out, shared.NewDomainError("INVALID_INPUT", "Unknown reservation status")
		}
		out.Status = &status
	}
	if filter.Type != "" {
		rtype := inventory.ReservationType(filter.Type)
		if !rtype.IsValid() {
			return out, shared.NewDomainError("INVALID_INPUT", "Unknown reservation type")
		}
		out.Type = &rtype
	}
	return out, nil
}
