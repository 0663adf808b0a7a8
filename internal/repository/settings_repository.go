package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"research-scheduler/internal/model"
	"research-scheduler/internal/store"
)

// SettingsRepository holds the email settings singleton.
type SettingsRepository struct {
	mu       sync.Mutex
	docs     DocumentStore
	settings model.EmailSettings
}

func NewSettingsRepository(docs DocumentStore) *SettingsRepository {
	return &SettingsRepository{docs: docs, settings: model.DefaultEmailSettings()}
}

// Load reads the stored settings over the defaults.
func (r *SettingsRepository) Load(ctx context.Context) model.EmailSettings {
	settings := model.DefaultEmailSettings()
	if !r.docs.Load(ctx, store.KeyEmailSettings, &settings) {
		settings = model.DefaultEmailSettings()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = settings
	return settings
}

// Refresh re-reads the settings, keeping the current ones when the read fails.
func (r *SettingsRepository) Refresh(ctx context.Context) bool {
	settings := model.DefaultEmailSettings()
	if !r.docs.Load(ctx, store.KeyEmailSettings, &settings) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = settings
	return true
}

func (r *SettingsRepository) Get() model.EmailSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// Save replaces the settings wholesale. The in-memory copy changes only
// after the store accepted the write.
func (r *SettingsRepository) Save(ctx context.Context, settings model.EmailSettings) (model.EmailSettings, error) {
	settings, err := NormalizeEmailSettings(settings)
	if err != nil {
		return model.EmailSettings{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.docs.Save(ctx, store.KeyEmailSettings, settings); err != nil {
		return model.EmailSettings{}, fmt.Errorf("save email settings: %w", err)
	}
	r.settings = settings
	return settings, nil
}

func NormalizeEmailSettings(s model.EmailSettings) (model.EmailSettings, error) {
	s.Email = strings.TrimSpace(s.Email)
	s.DigestDay = strings.ToLower(strings.TrimSpace(s.DigestDay))
	if s.DigestDay == "" {
		s.DigestDay = model.DefaultEmailSettings().DigestDay
	}
	if _, ok := model.ParseWeekday(s.DigestDay); !ok {
		return s, fmt.Errorf("%w: unknown digest day %q", ErrValidation, s.DigestDay)
	}
	if s.Enabled && !strings.Contains(s.Email, "@") {
		return s, fmt.Errorf("%w: email address required when notifications are enabled", ErrValidation)
	}
	return s, nil
}
