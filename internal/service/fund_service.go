package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/pkg/logger"
	"github.com/GoPolymarket/fundgate/internal/pkg/metrics"
	"github.com/GoPolymarket/fundgate/internal/validate"
	"github.com/shopspring/decimal"
)

// ChangePublisher receives every committed registry write.
type ChangePublisher interface {
	Publish(evt model.ChangeEvent)
}

// FundService is the fund settings registry: validated, optionally signed,
// revisioned records behind a store and an optional cache.
type FundService struct {
	store   FundStore
	cache   FundCache
	auth    *Authorizer
	events  ChangePublisher
	feeUnit string
	now     func() time.Time
}

func NewFundService(store FundStore, cache FundCache, auth *Authorizer, events ChangePublisher, feeUnit string) *FundService {
	unit, err := NormalizeFeeUnit(feeUnit)
	if err != nil {
		logger.Warn("unknown fee unit, using fraction", "unit", feeUnit)
		unit = FeeUnitFraction
	}
	return &FundService{
		store:   store,
		cache:   cache,
		auth:    auth,
		events:  events,
		feeUnit: unit,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *FundService) FeeUnit() string {
	return s.feeUnit
}

// Validate decodes and checks raw without storing it.
func (s *FundService) Validate(ctx context.Context, raw []byte) (model.FundSettings, error) {
	fs, err := validate.JSON(raw)
	if err != nil {
		recordValidationFailures(err)
		return model.FundSettings{}, err
	}
	return fs, nil
}

func (s *FundService) Create(ctx context.Context, raw []byte, sub Submission) (*model.FundRecord, error) {
	fs, err := s.Validate(ctx, raw)
	if err != nil {
		metrics.FundWrites.WithLabelValues("create", "invalid").Inc()
		return nil, err
	}
	// A new fund is governed by the authorities it declares.
	signerAddr, err := s.auth.Authorize(ctx, fs, fs, 1, sub)
	if err != nil {
		metrics.FundWrites.WithLabelValues("create", "unauthorized").Inc()
		return nil, err
	}

	now := s.now()
	rec := &model.FundRecord{
		Settings:  fs,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
		UpdatedBy: sub.OperatorID,
		Signer:    signerAddr,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		metrics.FundWrites.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	metrics.FundWrites.WithLabelValues("create", "ok").Inc()
	s.cacheSet(ctx, rec)
	s.publish(model.EventCreated, rec)
	logger.Info("fund registered", "fund", rec.Key(), "operator", sub.OperatorID, "signer", signerAddr)
	return rec, nil
}

func (s *FundService) Get(ctx context.Context, fundAddress string) (*model.FundRecord, error) {
	if !validFundAddress(fundAddress) {
		return nil, model.ErrInvalidAddress
	}
	if s.cache != nil {
		if rec, ok := s.cache.Get(ctx, fundAddress); ok {
			return rec, nil
		}
	}
	rec, err := s.store.Get(ctx, fundAddress)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, rec)
	return rec, nil
}

func (s *FundService) List(ctx context.Context, limit, offset int) ([]*model.FundRecord, error) {
	return s.store.List(ctx, limit, offset)
}

// Replace stores raw as the next revision of the fund at fundAddress. The
// write must be authorized by the record currently stored.
func (s *FundService) Replace(ctx context.Context, fundAddress string, raw []byte, sub Submission) (*model.FundRecord, error) {
	if !validFundAddress(fundAddress) {
		return nil, model.ErrInvalidAddress
	}
	fs, err := s.Validate(ctx, raw)
	if err != nil {
		metrics.FundWrites.WithLabelValues("replace", "invalid").Inc()
		return nil, err
	}
	if !sameAddress(fs.FundAddress, fundAddress) {
		metrics.FundWrites.WithLabelValues("replace", "invalid").Inc()
		return nil, model.ErrAddressMismatch
	}

	current, err := s.store.Get(ctx, fundAddress)
	if err != nil {
		return nil, err
	}
	revision := current.Revision + 1
	signerAddr, err := s.auth.Authorize(ctx, current.Settings, fs, revision, sub)
	if err != nil {
		metrics.FundWrites.WithLabelValues("replace", "unauthorized").Inc()
		return nil, err
	}

	rec := &model.FundRecord{
		Settings:  fs,
		Revision:  revision,
		CreatedAt: current.CreatedAt,
		UpdatedAt: s.now(),
		UpdatedBy: sub.OperatorID,
		Signer:    signerAddr,
	}
	if err := s.store.Update(ctx, rec, current.Revision); err != nil {
		status := "error"
		if errors.Is(err, model.ErrRevisionConflict) {
			status = "conflict"
		}
		metrics.FundWrites.WithLabelValues("replace", status).Inc()
		return nil, err
	}
	metrics.FundWrites.WithLabelValues("replace", "ok").Inc()
	s.cacheSet(ctx, rec)
	s.publish(model.EventUpdated, rec)
	logger.Info("fund updated", "fund", rec.Key(), "revision", rec.Revision, "operator", sub.OperatorID)
	return rec, nil
}

func (s *FundService) Delete(ctx context.Context, fundAddress string) error {
	if !validFundAddress(fundAddress) {
		return model.ErrInvalidAddress
	}
	current, err := s.store.Get(ctx, fundAddress)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, fundAddress); err != nil {
		metrics.FundWrites.WithLabelValues("delete", "error").Inc()
		return err
	}
	metrics.FundWrites.WithLabelValues("delete", "ok").Inc()
	if s.cache != nil {
		s.cache.Invalidate(ctx, fundAddress)
	}
	s.publish(model.EventDeleted, current)
	logger.Info("fund deleted", "fund", current.Key())
	return nil
}

// UpdateDigest returns the EIP-712 digest an authority signs to publish raw.
// A revision of zero means the next revision: 1 for an unknown fund,
// otherwise the stored revision plus one.
func (s *FundService) UpdateDigest(ctx context.Context, fundAddress string, raw []byte, revision int64) (*model.DigestResponse, error) {
	if !validFundAddress(fundAddress) {
		return nil, model.ErrInvalidAddress
	}
	fs, err := s.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !sameAddress(fs.FundAddress, fundAddress) {
		return nil, model.ErrAddressMismatch
	}
	if s.auth == nil {
		return nil, errors.New("signing domain not configured")
	}
	if revision <= 0 {
		current, err := s.store.Get(ctx, fundAddress)
		switch {
		case errors.Is(err, model.ErrFundNotFound):
			revision = 1
		case err != nil:
			return nil, err
		default:
			revision = current.Revision + 1
		}
	}
	update, digest, err := s.auth.Digest(fs, revision)
	if err != nil {
		return nil, err
	}
	return &model.DigestResponse{
		FundAddress:  update.Fund.Hex(),
		Revision:     revision,
		SettingsHash: update.SettingsHash.Hex(),
		Digest:       digest.Hex(),
		ChainID:      s.auth.ChainID(),
	}, nil
}

func (s *FundService) FeeSchedule(ctx context.Context, fundAddress string) (*FeeSchedule, error) {
	rec, err := s.Get(ctx, fundAddress)
	if err != nil {
		return nil, err
	}
	return ParseFeeSchedule(rec.Settings, s.feeUnit)
}

func (s *FundService) Quote(ctx context.Context, fundAddress string, req model.QuoteRequest) (*FeeQuote, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return nil, ErrInvalidAmount
	}
	base := decimal.Zero
	if strings.TrimSpace(req.Base) != "" {
		base, err = decimal.NewFromString(strings.TrimSpace(req.Base))
		if err != nil {
			return nil, ErrInvalidAmount
		}
	}
	sched, err := s.FeeSchedule(ctx, fundAddress)
	if err != nil {
		return nil, err
	}
	return sched.Quote(req.Kind, amount, base, req.PeriodDays)
}

func (s *FundService) DepositEligibility(ctx context.Context, fundAddress, depositor string) (*model.DepositEligibility, error) {
	rec, err := s.Get(ctx, fundAddress)
	if err != nil {
		return nil, err
	}
	return &model.DepositEligibility{
		FundAddress: rec.Settings.FundAddress,
		Address:     depositor,
		Whitelisted: rec.Settings.IsWhitelistedDeposits.OrElse(false),
		Allowed:     CanDeposit(rec.Settings, depositor),
	}, nil
}

func (s *FundService) ManagerCheck(ctx context.Context, fundAddress, manager string) (*model.ManagerCheck, error) {
	rec, err := s.Get(ctx, fundAddress)
	if err != nil {
		return nil, err
	}
	return &model.ManagerCheck{
		FundAddress: rec.Settings.FundAddress,
		Address:     manager,
		IsManager:   IsManager(rec.Settings, manager),
	}, nil
}

func (s *FundService) cacheSet(ctx context.Context, rec *model.FundRecord) {
	if s.cache != nil {
		s.cache.Set(ctx, rec)
	}
}

func (s *FundService) publish(eventType string, rec *model.FundRecord) {
	if s.events == nil || rec == nil {
		return
	}
	s.events.Publish(model.ChangeEvent{
		Type:        eventType,
		FundAddress: rec.Settings.FundAddress,
		Revision:    rec.Revision,
		At:          s.now(),
	})
}

func recordValidationFailures(err error) {
	var vErr *validate.ValidationError
	if !errors.As(err, &vErr) {
		return
	}
	for _, fe := range vErr.Errors() {
		metrics.ValidationFailures.WithLabelValues(string(fe.Kind), fe.Field).Inc()
	}
}

// validFundAddress requires the 0x prefix and a correct checksum for
// mixed-case input.
func validFundAddress(addr string) bool {
	return validate.AddressProblem(strings.TrimSpace(addr)) == ""
}
