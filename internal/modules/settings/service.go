package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aristath/valuescope/internal/domain"
	"github.com/aristath/valuescope/internal/modules/screening"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when an id does not name a stored item.
var ErrNotFound = errors.New("not found")

// Service exposes typed access to the stored settings documents.
// Every mutation is a read-modify-write of one key under a single mutex,
// so concurrent callers never lose each other's updates.
type Service struct {
	repo  *Repository
	mu    sync.Mutex
	newID func() string
	log   zerolog.Logger
}

// NewService creates a new settings service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		newID: uuid.NewString,
		log:   log.With().Str("service", "settings").Logger(),
	}
}

// update loads the document under key into a T, applies fn and stores the
// result. fn errors abort without writing.
func update[T any](ctx context.Context, s *Service, key string, fn func(*T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc T
	if _, err := s.repo.GetJSON(ctx, key, &doc); err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return s.repo.SetJSON(ctx, key, doc)
}

func load[T any](ctx context.Context, s *Service, key string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc T
	_, err := s.repo.GetJSON(ctx, key, &doc)
	return doc, err
}

// All returns every stored document keyed by setting key.
func (s *Service) All(ctx context.Context) (map[string]json.RawMessage, error) {
	values, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		if !json.Valid([]byte(value)) {
			s.log.Warn().Str("key", key).Msg("Skipping setting with invalid JSON")
			continue
		}
		result[key] = json.RawMessage(value)
	}
	return result, nil
}

// Clear removes every stored setting.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Clear(ctx)
}

// MetaInfo returns the stored dataset meta information.
func (s *Service) MetaInfo(ctx context.Context) (domain.MetaInfo, error) {
	return load[domain.MetaInfo](ctx, s, KeyMetaInfo)
}

// UpdateMetaInfo applies fn to the stored meta information atomically.
func (s *Service) UpdateMetaInfo(ctx context.Context, fn func(*domain.MetaInfo)) error {
	return update(ctx, s, KeyMetaInfo, func(meta *domain.MetaInfo) error {
		fn(meta)
		return nil
	})
}

// FilterSchemas returns the saved filters in display order.
func (s *Service) FilterSchemas(ctx context.Context) ([]screening.FilterSchema, error) {
	schemas, err := load[[]screening.FilterSchema](ctx, s, KeyFilterSchemas)
	if err != nil {
		return nil, err
	}
	if schemas == nil {
		schemas = []screening.FilterSchema{}
	}
	return schemas, nil
}

// SaveFilterSchema compiles schema and stores it. A schema without an id is
// appended under a fresh id; otherwise the schema with the same id is
// replaced, or appended when no such schema exists yet.
func (s *Service) SaveFilterSchema(ctx context.Context, schema screening.FilterSchema) (screening.FilterSchema, error) {
	if err := schema.Compile(); err != nil {
		return screening.FilterSchema{}, err
	}
	if schema.ID == "" {
		schema.ID = s.newID()
	}

	err := update(ctx, s, KeyFilterSchemas, func(schemas *[]screening.FilterSchema) error {
		i := slices.IndexFunc(*schemas, func(f screening.FilterSchema) bool { return f.ID == schema.ID })
		if i < 0 {
			*schemas = append(*schemas, schema)
		} else {
			(*schemas)[i] = schema
		}
		return nil
	})
	if err != nil {
		return screening.FilterSchema{}, err
	}

	s.log.Debug().Str("id", schema.ID).Str("title", schema.Title).Msg("Filter schema saved")
	return schema, nil
}

// DeleteFilterSchema removes the schema with id.
func (s *Service) DeleteFilterSchema(ctx context.Context, id string) error {
	return update(ctx, s, KeyFilterSchemas, func(schemas *[]screening.FilterSchema) error {
		n := len(*schemas)
		*schemas = slices.DeleteFunc(*schemas, func(f screening.FilterSchema) bool { return f.ID == id })
		if len(*schemas) == n {
			return fmt.Errorf("filter schema %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// IndicatorGroups returns the report indicator groups in display order.
func (s *Service) IndicatorGroups(ctx context.Context) ([]screening.ReportIndicatorGroup, error) {
	groups, err := load[[]screening.ReportIndicatorGroup](ctx, s, KeyIndicatorGroups)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []screening.ReportIndicatorGroup{}
	}
	return groups, nil
}

// CreateIndicatorGroup appends an empty group titled title.
func (s *Service) CreateIndicatorGroup(ctx context.Context, title string) (screening.ReportIndicatorGroup, error) {
	if strings.TrimSpace(title) == "" {
		return screening.ReportIndicatorGroup{}, screening.ErrEmptyTitle
	}
	group := screening.ReportIndicatorGroup{
		ID:         s.newID(),
		Title:      title,
		Indicators: []screening.ReportIndicator{},
	}
	err := update(ctx, s, KeyIndicatorGroups, func(groups *[]screening.ReportIndicatorGroup) error {
		*groups = append(*groups, group)
		return nil
	})
	if err != nil {
		return screening.ReportIndicatorGroup{}, err
	}
	return group, nil
}

// RenameIndicatorGroup changes the title of a group.
func (s *Service) RenameIndicatorGroup(ctx context.Context, groupID, title string) error {
	if strings.TrimSpace(title) == "" {
		return screening.ErrEmptyTitle
	}
	return update(ctx, s, KeyIndicatorGroups, func(groups *[]screening.ReportIndicatorGroup) error {
		i, err := findGroup(*groups, groupID)
		if err != nil {
			return err
		}
		(*groups)[i].Title = title
		return nil
	})
}

// RemoveIndicatorGroup deletes a group together with its indicators.
func (s *Service) RemoveIndicatorGroup(ctx context.Context, groupID string) error {
	return update(ctx, s, KeyIndicatorGroups, func(groups *[]screening.ReportIndicatorGroup) error {
		i, err := findGroup(*groups, groupID)
		if err != nil {
			return err
		}
		*groups = slices.Delete(*groups, i, i+1)
		return nil
	})
}

// SaveIndicator compiles indicator and stores it in group groupID, replacing
// an indicator with the same id or appending under a fresh id.
func (s *Service) SaveIndicator(ctx context.Context, groupID string, indicator screening.ReportIndicator) (screening.ReportIndicator, error) {
	if err := indicator.Compile(); err != nil {
		return screening.ReportIndicator{}, err
	}
	if indicator.ID == "" {
		indicator.ID = s.newID()
	}

	err := update(ctx, s, KeyIndicatorGroups, func(groups *[]screening.ReportIndicatorGroup) error {
		g, err := findGroup(*groups, groupID)
		if err != nil {
			return err
		}
		group := &(*groups)[g]
		i := slices.IndexFunc(group.Indicators, func(r screening.ReportIndicator) bool { return r.ID == indicator.ID })
		if i < 0 {
			group.Indicators = append(group.Indicators, indicator)
		} else {
			group.Indicators[i] = indicator
		}
		return nil
	})
	if err != nil {
		return screening.ReportIndicator{}, err
	}
	return indicator, nil
}

// RemoveIndicator deletes an indicator from group groupID.
func (s *Service) RemoveIndicator(ctx context.Context, groupID, indicatorID string) error {
	return update(ctx, s, KeyIndicatorGroups, func(groups *[]screening.ReportIndicatorGroup) error {
		g, err := findGroup(*groups, groupID)
		if err != nil {
			return err
		}
		group := &(*groups)[g]
		n := len(group.Indicators)
		group.Indicators = slices.DeleteFunc(group.Indicators, func(r screening.ReportIndicator) bool { return r.ID == indicatorID })
		if len(group.Indicators) == n {
			return fmt.Errorf("indicator %s: %w", indicatorID, ErrNotFound)
		}
		return nil
	})
}

// MoveIndicator moves an indicator, wherever it is, to position index of
// group toGroupID. A negative or out of range index appends.
func (s *Service) MoveIndicator(ctx context.Context, indicatorID, toGroupID string, index int) error {
	return update(ctx, s, KeyIndicatorGroups, func(groups *[]screening.ReportIndicatorGroup) error {
		to, err := findGroup(*groups, toGroupID)
		if err != nil {
			return err
		}

		var moved *screening.ReportIndicator
		for g := range *groups {
			group := &(*groups)[g]
			i := slices.IndexFunc(group.Indicators, func(r screening.ReportIndicator) bool { return r.ID == indicatorID })
			if i < 0 {
				continue
			}
			indicator := group.Indicators[i]
			moved = &indicator
			group.Indicators = slices.Delete(group.Indicators, i, i+1)
			break
		}
		if moved == nil {
			return fmt.Errorf("indicator %s: %w", indicatorID, ErrNotFound)
		}

		target := &(*groups)[to]
		if index < 0 || index > len(target.Indicators) {
			index = len(target.Indicators)
		}
		target.Indicators = slices.Insert(target.Indicators, index, *moved)
		return nil
	})
}

func findGroup(groups []screening.ReportIndicatorGroup, id string) (int, error) {
	i := slices.IndexFunc(groups, func(g screening.ReportIndicatorGroup) bool { return g.ID == id })
	if i < 0 {
		return -1, fmt.Errorf("indicator group %s: %w", id, ErrNotFound)
	}
	return i, nil
}

// Followed returns the indicators pinned on stockID in display order.
func (s *Service) Followed(ctx context.Context, stockID string) ([]FollowedIndicator, error) {
	followed, err := load[map[string][]FollowedIndicator](ctx, s, KeyFollowed)
	if err != nil {
		return nil, err
	}
	list := followed[stockID]
	if list == nil {
		list = []FollowedIndicator{}
	}
	return list, nil
}

// SetFollowed replaces the pinned indicators of stockID. Reasons already
// recorded for an indicator are kept when the new entry has none; an empty
// list unpins everything.
func (s *Service) SetFollowed(ctx context.Context, stockID string, list []FollowedIndicator) error {
	return update(ctx, s, KeyFollowed, func(followed *map[string][]FollowedIndicator) error {
		if *followed == nil {
			*followed = make(map[string][]FollowedIndicator)
		}
		if len(list) == 0 {
			delete(*followed, stockID)
			return nil
		}
		reasons := make(map[string]string)
		for _, f := range (*followed)[stockID] {
			reasons[f.ID] = f.Reason
		}
		next := make([]FollowedIndicator, 0, len(list))
		for _, f := range list {
			if f.Reason == "" {
				f.Reason = reasons[f.ID]
			}
			next = append(next, f)
		}
		(*followed)[stockID] = next
		return nil
	})
}

// Follow pins (or unpins) an indicator on stockID. Pinning twice is a no-op.
func (s *Service) Follow(ctx context.Context, stockID, indicatorID string, follow bool) error {
	return update(ctx, s, KeyFollowed, func(followed *map[string][]FollowedIndicator) error {
		if *followed == nil {
			*followed = make(map[string][]FollowedIndicator)
		}
		list := (*followed)[stockID]
		i := slices.IndexFunc(list, func(f FollowedIndicator) bool { return f.ID == indicatorID })
		switch {
		case follow && i < 0:
			(*followed)[stockID] = append(list, FollowedIndicator{ID: indicatorID})
		case !follow && i >= 0:
			(*followed)[stockID] = slices.Delete(list, i, i+1)
		}
		return nil
	})
}

// SetFollowReason records the note attached to a pinned indicator.
func (s *Service) SetFollowReason(ctx context.Context, stockID, indicatorID, reason string) error {
	return update(ctx, s, KeyFollowed, func(followed *map[string][]FollowedIndicator) error {
		list := (*followed)[stockID]
		i := slices.IndexFunc(list, func(f FollowedIndicator) bool { return f.ID == indicatorID })
		if i < 0 {
			return fmt.Errorf("followed indicator %s on %s: %w", indicatorID, stockID, ErrNotFound)
		}
		list[i].Reason = reason
		return nil
	})
}

// Favorites returns the favorite stock ids in insertion order.
func (s *Service) Favorites(ctx context.Context) ([]string, error) {
	ids, err := load[[]string](ctx, s, KeyFavorites)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// ToggleFavorite adds id to the favorites, or removes it when already
// present. Returns whether id is a favorite afterwards.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var favorite bool
	err := update(ctx, s, KeyFavorites, func(ids *[]string) error {
		if i := slices.Index(*ids, id); i >= 0 {
			*ids = slices.Delete(*ids, i, i+1)
			favorite = false
		} else {
			*ids = append(*ids, id)
			favorite = true
		}
		return nil
	})
	return favorite, err
}
