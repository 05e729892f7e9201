package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/storefront/inventory/internal/domain/inventory"
	"github.com/storefront/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// AlertService lists alerts and drives their resolution lifecycle
type AlertService struct {
	alertRepo inventory.AlertRepository
	txScope   TransactionScope
	logger    *zap.Logger
}

// NewAlertService creates a new AlertService
func NewAlertService(repos Repositories, txScope TransactionScope, logger *zap.Logger) *AlertService {
	return &AlertService{
		alertRepo: repos.Alerts,
		txScope:   txScope,
		logger:    logger,
	}
}

// GetAlert returns one alert
func (s *AlertService) GetAlert(ctx context.Context, id uuid.UUID) (*AlertResponse, error) {
	alert, err := s.alertRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToAlertResponse(alert)
	return &response, nil
}

// ListAlerts returns alerts matching the filter, newest first
func (s *AlertService) ListAlerts(ctx context.Context, filter AlertListFilter) ([]AlertResponse, int64, error) {
	domainFilter, err := toAlertFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	alerts, total, err := s.alertRepo.List(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]AlertResponse, len(alerts))
	for i, a := range alerts {
		responses[i] = ToAlertResponse(a)
	}
	return responses, total, nil
}

// ResolveAlert marks an active alert as handled
func (s *AlertService) ResolveAlert(ctx context.Context, id uuid.UUID, actor string) (*AlertResponse, error) {
	return s.close(ctx, id, actor, (*inventory.StockAlert).Resolve)
}

// IgnoreAlert dismisses an active alert
func (s *AlertService) IgnoreAlert(ctx context.Context, id uuid.UUID, actor string) (*AlertResponse, error) {
	return s.close(ctx, id, actor, (*inventory.StockAlert).Ignore)
}

func (s *AlertService) close(ctx context.Context, id uuid.UUID, actor string, transition func(*inventory.StockAlert, string) error) (*AlertResponse, error) {
	var response AlertResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		alert, err := repos.AlertRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		expected := alert.Version
		if err := transition(alert, actor); err != nil {
			return err
		}
		if err := repos.AlertRepo().Update(ctx, alert, expected); err != nil {
			return err
		}
		if err := repos.Events().Publish(ctx, alert.PullDomainEvents()...); err != nil {
			return fmt.Errorf("publish alert events: %w", err)
		}
		response = ToAlertResponse(alert)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock alert closed",
		zap.String("alert_id", id.String()),
		zap.String("status", response.Status),
		zap.String("actor", response.ResolvedBy),
	)
	return &response, nil
}

func toAlertFilter(filter AlertListFilter) (inventory.AlertFilter, error) {
	out := inventory.AlertFilter{
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
	if filter.Status != "" {
		status := inventory.AlertStatus(filter.Status)
		if !status.IsValid() {
			return out, shared.NewDomainError("INVALID_INPUT", "Unknown alert status")
		}
		out.Status = &status
	}
	if filter.AlertType != "" {
		alertType := inventory.AlertType(filter.AlertType)
		if !alertType.IsValid() {
			return out, shared.NewDomainError("INVALID_INPUT", "Unknown alert type")
		}
		out.Type = &alertType
	}
	return out, nil
}
