package member

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/db"
	"github.com/hackgods/car-maintenance-booking/internal/metrics"
)

// PointsPerUnit is the experience earned per whole currency unit spent.
const PointsPerUnit = 1

type Service struct {
	repo Repository
	tx   db.Transactor
	log  *zap.Logger
}

func NewService(repo Repository, tx db.Transactor, log *zap.Logger) *Service {
	return &Service{repo: repo, tx: tx, log: log}
}

func (s *Service) levels(ctx context.Context) ([]Level, error) {
	levels, err := s.repo.ListLevels(ctx)
	if err != nil {
		return nil, err
	}
	sortLevels(levels)
	return levels, nil
}

func levelID(l *Level) *int64 {
	if l == nil {
		return nil
	}
	id := l.ID
	return &id
}

// InitMember creates the member row of userID at the entry level. Existing rows are returned unchanged.
func (s *Service) InitMember(ctx context.Context, userID int64) (*Member, error) {
	var m *Member
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.ensureMember(ctx, userID)
		return err
	})
	return m, err
}

func (s *Service) ensureMember(ctx context.Context, userID int64) (*Member, error) {
	m, err := s.repo.GetMember(ctx, userID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrMemberNotFound) {
		return nil, err
	}

	levels, err := s.levels(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateMember(ctx, Member{UserID: userID, LevelID: levelID(LevelFor(levels, 0))})
}

// apply appends a ledger record and moves the cached totals and level with it.
func (s *Service) apply(ctx context.Context, m *Member, delta int, typ RecordType, orderID *int64, reason string) error {
	var why *string
	if reason != "" {
		why = &reason
	}
	if _, err := s.repo.InsertRecord(ctx, Record{
		UserID:  m.UserID,
		OrderID: orderID,
		Change:  delta,
		Type:    typ,
		Reason:  why,
	}); err != nil {
		return err
	}

	levels, err := s.levels(ctx)
	if err != nil {
		return err
	}

	m.TotalExperience += delta
	m.AvailableExperience += delta
	m.LevelID = levelID(LevelFor(levels, m.TotalExperience))

	return s.repo.UpdateMember(ctx, *m)
}

// AddExperience appends a positive delta of any type, creating the member row on first use.
func (s *Service) AddExperience(ctx context.Context, userID int64, points int, typ RecordType, orderID *int64, reason string) (*Member, error) {
	if points <= 0 {
		return nil, apperr.Validation("points must be positive")
	}
	if !typ.Valid() {
		return nil, apperr.Validation("unknown experience type %q", typ)
	}

	var m *Member
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.ensureMember(ctx, userID); err != nil {
			return err
		}
		var err error
		m, err = s.repo.LockMember(ctx, userID)
		if err != nil {
			return err
		}
		return s.apply(ctx, m, points, typ, orderID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("experience added",
		zap.Int64("user_id", userID),
		zap.Int("points", points),
		zap.String("type", string(typ)),
		zap.Int("total", m.TotalExperience),
	)
	return m, nil
}

// AddExperienceForOrder awards floor(finalAmount) points for a completed order.
// It returns the points awarded, which is zero for orders under one unit.
func (s *Service) AddExperienceForOrder(ctx context.Context, userID int64, finalAmount decimal.Decimal, orderID int64) (int, error) {
	points := int(finalAmount.Floor().IntPart()) * PointsPerUnit
	if points <= 0 {
		return 0, nil
	}
	if _, err := s.AddExperience(ctx, userID, points, RecordConsume, &orderID, "order completed"); err != nil {
		return 0, fmt.Errorf("award order experience: %w", err)
	}
	metrics.ExperienceAwarded(points)
	return points, nil
}

// DeductExperience removes points as a complaint penalty. The member must
// have at least points available.
func (s *Service) DeductExperience(ctx context.Context, userID int64, points int, reason string) (*Member, error) {
	if points <= 0 {
		return nil, apperr.Validation("points must be positive")
	}

	var m *Member
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.repo.LockMember(ctx, userID)
		if err != nil {
			return err
		}
		if m.AvailableExperience < points {
			return ErrInsufficientExperience
		}
		return s.apply(ctx, m, -points, RecordComplaint, nil, reason)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("experience deducted", zap.Int64("user_id", userID), zap.Int("points", points))
	return m, nil
}

// AdjustExperience applies a manual correction of either sign.
func (s *Service) AdjustExperience(ctx context.Context, userID int64, delta int, reason string) (*Member, error) {
	if delta == 0 {
		return nil, apperr.Validation("adjustment must not be zero")
	}

	var m *Member
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.ensureMember(ctx, userID); err != nil {
			return err
		}
		var err error
		m, err = s.repo.LockMember(ctx, userID)
		if err != nil {
			return err
		}
		if m.AvailableExperience+delta < 0 || m.TotalExperience+delta < 0 {
			return ErrNegativeExperience
		}
		return s.apply(ctx, m, delta, RecordManual, nil, reason)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("experience adjusted", zap.Int64("user_id", userID), zap.Int("delta", delta))
	return m, nil
}

func (s *Service) GetLevelByExperience(ctx context.Context, exp int) (*Level, error) {
	levels, err := s.levels(ctx)
	if err != nil {
		return nil, err
	}
	l := LevelFor(levels, exp)
	if l == nil {
		return nil, ErrNoLevels
	}
	return l, nil
}

type Info struct {
	Member   *Member
	Level    *Level
	Progress Progress
}

func (s *Service) MemberInfo(ctx context.Context, userID int64) (*Info, error) {
	m, err := s.InitMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	levels, err := s.levels(ctx)
	if err != nil {
		return nil, err
	}

	info := &Info{Member: m, Progress: LevelProgress(levels, m.TotalExperience)}
	if m.LevelID != nil {
		for i := range levels {
			if levels[i].ID == *m.LevelID {
				info.Level = &levels[i]
				break
			}
		}
	}
	return info, nil
}

func (s *Service) ExperienceRecords(ctx context.Context, userID int64, page db.Page) ([]Record, int, error) {
	return s.repo.ListRecords(ctx, userID, page.Normalize())
}

// CalculateDiscount returns amount after the member's level discount,
// rounded half up to cents. Non-members pay the full amount.
func (s *Service) CalculateDiscount(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	m, err := s.repo.GetMember(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return amount, nil
		}
		return decimal.Zero, err
	}
	if m.LevelID == nil {
		return amount, nil
	}

	l, err := s.repo.GetLevelByID(ctx, *m.LevelID)
	if err != nil {
		if errors.Is(err, ErrLevelNotFound) {
			return amount, nil
		}
		return decimal.Zero, err
	}
	return ApplyRate(amount, l.DiscountRate), nil
}

// ApplyRate multiplies amount by rate and rounds half up to two places.
func ApplyRate(amount, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return amount
	}
	return amount.Mul(rate).Round(2)
}

// Level administration

func (s *Service) ListLevels(ctx context.Context) ([]Level, error) {
	return s.levels(ctx)
}

func (s *Service) SaveLevel(ctx context.Context, l Level) (*Level, error) {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return nil, apperr.Validation("level name is required")
	}
	if l.MinExperience < 0 {
		return nil, apperr.Validation("min experience must not be negative")
	}
	if !l.DiscountRate.IsPositive() || l.DiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, apperr.Validation("discount rate must be in (0, 1]")
	}
	if l.ID != 0 {
		if _, err := s.repo.GetLevelByID(ctx, l.ID); err != nil {
			return nil, err
		}
	}

	saved, err := s.repo.SaveLevel(ctx, l)
	if err != nil {
		return nil, err
	}
	s.log.Info("member level saved", zap.Int64("level_id", saved.ID), zap.String("name", saved.Name))
	return saved, nil
}

func (s *Service) DeleteLevel(ctx context.Context, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetLevelByID(ctx, id); err != nil {
			return err
		}
		counts, err := s.repo.CountMembersByLevel(ctx)
		if err != nil {
			return err
		}
		if counts[id] > 0 {
			return ErrLevelInUse
		}
		return s.repo.DeleteLevel(ctx, id)
	})
}

type Stats struct {
	TotalMembers int
	PerLevel     map[string]int
}

func (s *Service) MemberStats(ctx context.Context) (*Stats, error) {
	levels, err := s.levels(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountMembersByLevel(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{PerLevel: make(map[string]int, len(levels))}
	for _, n := range counts {
		st.TotalMembers += n
	}
	for _, l := range levels {
		st.PerLevel[l.Name] = counts[l.ID]
	}
	return st, nil
}

type ReconcileResult struct {
	Member  *Member
	Before  int
	Drifted bool
}

// Reconcile rebuilds the cached total from the ledger and re-derives the level.
func (s *Service) Reconcile(ctx context.Context, userID int64) (*ReconcileResult, error) {
	var res ReconcileResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := s.repo.LockMember(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := s.repo.SumRecords(ctx, userID)
		if err != nil {
			return err
		}
		levels, err := s.levels(ctx)
		if err != nil {
			return err
		}

		res.Before = m.TotalExperience
		drift := sum - m.TotalExperience
		wantLevel := levelID(LevelFor(levels, sum))
		levelDrift := (wantLevel == nil) != (m.LevelID == nil) ||
			(wantLevel != nil && m.LevelID != nil && *wantLevel != *m.LevelID)

		res.Member = m
		if drift == 0 && !levelDrift {
			return nil
		}

		res.Drifted = true
		m.TotalExperience = sum
		m.AvailableExperience = max(0, m.AvailableExperience+drift)
		m.LevelID = wantLevel
		return s.repo.UpdateMember(ctx, *m)
	})
	if err != nil {
		return nil, err
	}

	if res.Drifted {
		s.log.Warn("member totals reconciled",
			zap.Int64("user_id", userID),
			zap.Int("before", res.Before),
			zap.Int("after", res.Member.TotalExperience),
		)
	}
	return &res, nil
}
